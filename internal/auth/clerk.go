package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v4"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	// KeyTTL is how long a fetched signing key is trusted before the JWKS is fetched again.
	KeyTTL = time.Hour
	// MinRefreshInterval bounds how often an unknown kid may trigger a JWKS fetch.
	MinRefreshInterval = 30 * time.Second

	requiredIssuerPrefix = "https://"
)

var (
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownKey is returned when the token's kid is not in the JWKS.
	ErrUnknownKey = errors.New("signing key not found")
)

// ClerkUser is the identity attached to a request after its token is verified.
type ClerkUser struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// HasAnyRole reports whether the user holds at least one of roles.
func (u *ClerkUser) HasAnyRole(roles ...string) bool {
	if u == nil {
		return false
	}
	for _, want := range roles {
		for _, have := range u.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Claims are the session token claims the service reads.
type Claims struct {
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier verifies a bearer token and returns the identity it carries.
type Verifier interface {
	Verify(ctx context.Context, token string) (*ClerkUser, error)
}

// ClerkVerifier verifies Clerk session tokens against the instance JWKS.
type ClerkVerifier struct {
	jwksURL    string
	secretKey  string
	httpClient *http.Client
	keys       *gocache.Cache
	log        *zap.Logger

	mu              sync.Mutex
	lastFetch       time.Time
	refreshInterval time.Duration
	now             func() time.Time
}

var _ Verifier = (*ClerkVerifier)(nil)

// NewClerkVerifier creates a verifier that fetches keys from jwksURL using secretKey.
func NewClerkVerifier(jwksURL, secretKey string, log *zap.Logger) *ClerkVerifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClerkVerifier{
		jwksURL:         jwksURL,
		secretKey:       secretKey,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		keys:            gocache.New(KeyTTL, 2*KeyTTL),
		log:             log.Named("clerk"),
		refreshInterval: MinRefreshInterval,
		now:             time.Now,
	}
}

// Verify checks the token signature and standard claims, requires an https
// issuer, and projects the claims onto a ClerkUser.
func (v *ClerkVerifier) Verify(ctx context.Context, raw string) (*ClerkUser, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid")
		}
		return v.key(ctx, kid)
	})
	if err != nil {
		v.log.Warn("token verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !strings.HasPrefix(claims.Issuer, requiredIssuerPrefix) {
		v.log.Warn("token issuer rejected", zap.String("issuer", claims.Issuer))
		return nil, fmt.Errorf("%w: issuer %q", ErrInvalidToken, claims.Issuer)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	return &ClerkUser{
		ID:        claims.Subject,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Roles:     roles,
	}, nil
}

func (v *ClerkVerifier) key(ctx context.Context, kid string) (interface{}, error) {
	if k, ok := v.keys.Get(kid); ok {
		return k, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Another request may have refreshed while we waited.
	if k, ok := v.keys.Get(kid); ok {
		return k, nil
	}
	if !v.lastFetch.IsZero() && v.now().Sub(v.lastFetch) < v.refreshInterval {
		return nil, ErrUnknownKey
	}
	if err := v.refresh(ctx); err != nil {
		return nil, err
	}
	if k, ok := v.keys.Get(kid); ok {
		return k, nil
	}
	return nil, ErrUnknownKey
}

func (v *ClerkVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.log.Error("jwks fetch failed", zap.Error(err))
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.log.Error("jwks fetch failed", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	v.lastFetch = v.now()
	loaded := 0
	for _, k := range set.Keys {
		if k.KeyID == "" || !k.Valid() {
			continue
		}
		v.keys.Set(k.KeyID, k.Key, gocache.DefaultExpiration)
		loaded++
	}
	v.log.Info("jwks refreshed", zap.Int("keys", loaded))
	return nil
}
