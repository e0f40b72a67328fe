package storage

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

type fakeSigner struct {
	email    string
	payloads [][]byte
	err      error
}

func (f *fakeSigner) Email() string {
	return f.email
}

func (f *fakeSigner) SignBytes(_ context.Context, payload []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, append([]byte(nil), payload...))
	return []byte("signed"), nil
}

func TestLinkerDownloadURL(t *testing.T) {
	signer := &fakeSigner{email: "exports@example.iam.gserviceaccount.com"}
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	linker, err := NewLinker(signer, "shop-exports", WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewLinker: %v", err)
	}

	link, err := linker.DownloadURL(context.Background(), "exports/lanparty/2024/03/LP-00001.xml", 10*time.Minute)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if !link.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", link.ExpiresAt)
	}
	parsed, err := url.Parse(link.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(parsed.Path, "shop-exports/exports/lanparty/2024/03/LP-00001.xml") {
		t.Fatalf("unexpected path %s", parsed.Path)
	}
	if got := parsed.Query().Get("response-content-disposition"); got != `attachment; filename="LP-00001.xml"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if len(signer.payloads) != 1 {
		t.Fatalf("expected one signing call, got %d", len(signer.payloads))
	}
}

func TestLinkerRejectsLongExpiry(t *testing.T) {
	linker, err := NewLinker(&fakeSigner{email: "a@b"}, "bucket")
	if err != nil {
		t.Fatalf("NewLinker: %v", err)
	}
	if _, err := linker.DownloadURL(context.Background(), "x.xml", time.Hour); !errors.Is(err, errExpiryTooLong) {
		t.Fatalf("expected errExpiryTooLong, got %v", err)
	}
}

func TestLinkerPropagatesSignerError(t *testing.T) {
	linker, err := NewLinker(&fakeSigner{email: "a@b", err: errors.New("boom")}, "bucket")
	if err != nil {
		t.Fatalf("NewLinker: %v", err)
	}
	if _, err := linker.DownloadURL(context.Background(), "x.xml", 0); err == nil {
		t.Fatalf("expected signer error")
	}
}

func TestNewLinkerRequiresSignerAndBucket(t *testing.T) {
	if _, err := NewLinker(nil, "bucket"); !errors.Is(err, errNoSigner) {
		t.Fatalf("expected errNoSigner, got %v", err)
	}
	if _, err := NewLinker(&fakeSigner{email: "a@b"}, " "); !errors.Is(err, errInvalidBucket) {
		t.Fatalf("expected errInvalidBucket, got %v", err)
	}
}

func TestKeySignerSignsPayload(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyJSON, _ := json.Marshal(map[string]string{
		"client_email": "exports@example.iam.gserviceaccount.com",
		"private_key":  string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
	})

	signer, err := NewKeySigner(keyJSON)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}
	if signer.Email() != "exports@example.iam.gserviceaccount.com" {
		t.Fatalf("unexpected email %s", signer.Email())
	}
	sig, err := signer.SignBytes(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("SignBytes: %v", err)
	}
	if len(sig) != 256 {
		t.Fatalf("expected 256 byte signature, got %d", len(sig))
	}
}
