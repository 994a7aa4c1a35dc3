// internal/api/middleware/auth.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleUser       = "user"
	RoleCompliance = "compliance"

	// AccountHeader names the caller when token verification is disabled.
	AccountHeader = "X-Account-ID"
	roleHeader    = "X-Account-Role"
)

// Claims are the JWT claims binding a request to an account.
type Claims struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID uuid.UUID
	Role      string
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored by Authenticate.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator validates HS256 bearer tokens. With an empty secret it trusts the
// X-Account-ID header instead, which is meant for local development only. Header
// callers are plain users unless WithHeaderRoles is given.
type Authenticator struct {
	secret      []byte
	headerRoles bool
	logger      *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithHeaderRoles lets header-mode callers claim a role through X-Account-Role.
// It has no effect when tokens are verified.
func WithHeaderRoles() Option {
	return func(a *Authenticator) { a.headerRoles = true }
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(secret string, logger *slog.Logger, opts ...Option) *Authenticator {
	a := &Authenticator{secret: []byte(secret), logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether bearer tokens are verified.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Authenticate rejects requests without a valid caller and stores the Principal in the context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			principal Principal
			err       error
		)
		if a.Enabled() {
			principal, err = a.fromToken(r.Header.Get("Authorization"))
		} else {
			principal, err = a.fromHeaders(r)
		}
		if err != nil {
			a.logger.DebugContext(r.Context(), "request not authenticated", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireRole allows only callers carrying role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok || p.Role != role {
				writeError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) fromToken(header string) (Principal, error) {
	if header == "" {
		return Principal{}, errors.New("missing authorization header")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Principal{}, errors.New("invalid authorization format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Principal{}, errors.New("invalid token")
	}

	id, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return Principal{}, errors.New("invalid token subject")
	}
	return Principal{AccountID: id, Role: roleOrDefault(claims.Role)}, nil
}

func (a *Authenticator) fromHeaders(r *http.Request) (Principal, error) {
	raw := r.Header.Get(AccountHeader)
	if raw == "" {
		return Principal{}, fmt.Errorf("missing %s header", AccountHeader)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid %s header", AccountHeader)
	}
	role := RoleUser
	if a.headerRoles {
		role = roleOrDefault(r.Header.Get(roleHeader))
	}
	return Principal{AccountID: id, Role: role}, nil
}

func roleOrDefault(role string) string {
	if role == "" {
		return RoleUser
	}
	return role
}

// IssueToken signs a token for accountID that expires after ttl.
func IssueToken(secret string, accountID uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: accountID.String(),
		Role:      roleOrDefault(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
