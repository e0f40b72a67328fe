package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/platform/config"
	"github.com/byceps/byceps-sub001/internal/services"
)

// FirebaseVerifier coordinates Firebase Admin SDK access for token
// verification and user administration.
type FirebaseVerifier struct {
	client  *firebaseauth.Client
	timeout time.Duration
}

// FirebaseOption customises FirebaseVerifier instances.
type FirebaseOption func(*FirebaseVerifier)

// WithFirebaseTimeout overrides the timeout used for Admin SDK calls.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewFirebaseVerifier constructs a FirebaseVerifier backed by the Admin SDK.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	verifier := &FirebaseVerifier{client: authClient, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier, nil
}

// VerifyIDToken forwards verification to the underlying Firebase client using a bounded context.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	return v.client.VerifyIDToken(ctx, idToken)
}

// GetUser loads a Firebase user record for the given UID.
func (v *FirebaseVerifier) GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
	if v == nil || v.client == nil {
		return nil, errors.New("firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	return v.client.GetUser(ctx, uid)
}

// RevokeRefreshTokens invalidates every refresh token of the user.
func (v *FirebaseVerifier) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if v == nil || v.client == nil {
		return errors.New("firebase verifier not initialised")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	return v.client.RevokeRefreshTokens(ctx, uid)
}

// UserAdmin is the subset of the Admin SDK the directory needs.
type UserAdmin interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Directory resolves shop users from Firebase Auth accounts.
type Directory struct {
	admin      UserAdmin
	localeKey  string
	deletedKey string
}

var (
	_ services.UserDirectory = (*Directory)(nil)
	_ services.TokenRevoker  = (*Directory)(nil)
)

// NewDirectory wraps a Firebase user admin. Locale and a soft-delete marker
// are read from custom claims.
func NewDirectory(admin UserAdmin) *Directory {
	return &Directory{admin: admin, localeKey: defaultLocaleClaim, deletedKey: "deleted"}
}

// GetUser maps the Firebase record onto a shop user. Disabled accounts are
// reported as deleted so their screen names are withheld.
func (d *Directory) GetUser(ctx context.Context, userID string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, fmt.Errorf("%w: empty id", services.ErrUnknownUser)
	}
	record, err := d.admin.GetUser(ctx, userID)
	if err != nil {
		if firebaseauth.IsUserNotFound(err) {
			return domain.User{}, fmt.Errorf("%w: %s", services.ErrUnknownUser, userID)
		}
		return domain.User{}, fmt.Errorf("user directory: get %s: %w", userID, err)
	}

	user := domain.User{ID: userID, Deleted: record.Disabled}
	if record.UserInfo != nil {
		user.ScreenName = record.DisplayName
		user.EmailAddress = record.Email
	}
	if locale, ok := record.CustomClaims[d.localeKey].(string); ok {
		user.Locale = locale
	}
	if deleted, ok := record.CustomClaims[d.deletedKey].(bool); ok && deleted {
		user.Deleted = true
	}
	return user, nil
}

// RevokeRefreshTokens signs the user out of every device.
func (d *Directory) RevokeRefreshTokens(ctx context.Context, userID string) error {
	if err := d.admin.RevokeRefreshTokens(ctx, userID); err != nil {
		if firebaseauth.IsUserNotFound(err) {
			return nil
		}
		return fmt.Errorf("user directory: revoke tokens of %s: %w", userID, err)
	}
	return nil
}
