package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const (
	defaultLinkExpiry = 5 * time.Minute
	maxLinkExpiry     = 15 * time.Minute
)

var (
	errNoSigner       = errors.New("storage: signer is required")
	errInvalidBucket  = errors.New("storage: bucket name is required")
	errInvalidObject  = errors.New("storage: object name is required")
	errExpiryTooLong  = errors.New("storage: expiry exceeds permitted maximum")
	errContextMissing = errors.New("storage: context is required")
)

// Linker hands out short-lived signed download URLs for stored exports.
type Linker struct {
	signer Signer
	bucket string
	now    func() time.Time
}

// LinkerOption customises linker behaviour.
type LinkerOption func(*Linker)

// WithClock injects a custom clock.
func WithClock(clock func() time.Time) LinkerOption {
	return func(l *Linker) {
		if clock != nil {
			l.now = clock
		}
	}
}

// NewLinker constructs a Linker signing URLs for objects in bucket.
func NewLinker(signer Signer, bucket string, opts ...LinkerOption) (*Linker, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	l := &Linker{signer: signer, bucket: bucket, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// DownloadLink describes a signed URL.
type DownloadLink struct {
	URL       string
	ExpiresAt time.Time
}

// DownloadURL signs a GET URL for object. The download is served as an
// attachment named after the object's base name.
func (l *Linker) DownloadURL(ctx context.Context, object string, expiresIn time.Duration) (DownloadLink, error) {
	if ctx == nil {
		return DownloadLink{}, errContextMissing
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return DownloadLink{}, errInvalidObject
	}
	if expiresIn <= 0 {
		expiresIn = defaultLinkExpiry
	}
	if expiresIn > maxLinkExpiry {
		return DownloadLink{}, errExpiryTooLong
	}

	name := object[strings.LastIndex(object, "/")+1:]
	expiresAt := l.now().Add(expiresIn)
	signed, err := gcs.SignedURL(l.bucket, object, &gcs.SignedURLOptions{
		GoogleAccessID: l.signer.Email(),
		Scheme:         gcs.SigningSchemeV4,
		Method:         "GET",
		Expires:        expiresAt,
		QueryParameters: url.Values{
			"response-content-disposition": {fmt.Sprintf("attachment; filename=%q", name)},
		},
		SignBytes: func(payload []byte) ([]byte, error) {
			return l.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return DownloadLink{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return DownloadLink{URL: signed, ExpiresAt: expiresAt}, nil
}
