package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"iara/internal/models"
	"iara/internal/storage"
)

var ErrUnauthenticated = errors.New("authentication required")

const DevBypassHeader = "x-user-sub"

type profileLookup interface {
	Get(ctx context.Context, userID string) (models.Profile, error)
}

// Claims are the fields read from the identity provider's access token.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier turns a bearer token into a Principal. Roles come from the profiles table,
// never from the token.
type Verifier struct {
	secret    []byte
	devBypass bool
	profiles  profileLookup
}

func NewVerifier(secret string, devBypass bool, profiles profileLookup) *Verifier {
	return &Verifier{secret: []byte(secret), devBypass: devBypass, profiles: profiles}
}

func (v *Verifier) FromRequest(r *http.Request) (models.Principal, error) {
	return v.Authenticate(r.Context(), r.Header.Get)
}

// Authenticate reads credentials through header, which must be case-insensitive.
func (v *Verifier) Authenticate(ctx context.Context, header func(string) string) (models.Principal, error) {
	if v.devBypass {
		if sub := strings.TrimSpace(header(DevBypassHeader)); sub != "" {
			return v.principal(ctx, sub, "")
		}
	}
	raw := strings.TrimSpace(header("Authorization"))
	if raw == "" {
		return models.Principal{}, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated)
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if len(v.secret) == 0 {
		return models.Principal{}, fmt.Errorf("%w: token verification is not configured", ErrUnauthenticated)
	}
	claims, err := v.Verify(raw)
	if err != nil {
		return models.Principal{}, err
	}
	return v.principal(ctx, claims.Subject, claims.Email)
}

// Verify checks an HS256 token and returns its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return claims, nil
}

func (v *Verifier) principal(ctx context.Context, sub, email string) (models.Principal, error) {
	p := models.Principal{UserID: sub, Email: email, Role: models.RoleUser}
	if v.profiles == nil {
		return p, nil
	}
	prof, err := v.profiles.Get(ctx, sub)
	switch {
	case err == nil:
		if prof.Role.Valid() {
			p.Role = prof.Role
		}
		if p.Email == "" {
			p.Email = prof.Email
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		log.Printf("auth profile lookup failed user=%s err=%v", sub, err)
	}
	return p, nil
}
