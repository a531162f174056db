package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

type identityKey struct{}

// Identity is the caller identity attached to the request context by Auth.
type Identity struct {
	Subject string
	Role    string
}

// CallerFrom extracts the caller identity from the request context.
func CallerFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Auth returns middleware that resolves caller identity. With auth enabled,
// bearer tokens are verified against the configured OIDC issuer and the role
// is read from the configured claim. Disabled, identity comes from the
// X-Gavel-Actor and X-Gavel-Role headers, which is only suitable for local
// development. The identity is attached to the context either way; downstream
// capability checks decide whether it is sufficient.
func Auth(cfg *AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	var (
		once     sync.Once
		verifier *oidc.IDTokenVerifier
		initErr  error
	)

	// The issuer is dialed on first use, not at construction, so the
	// server can start while the identity provider is still coming up.
	verify := func(ctx context.Context) (*oidc.IDTokenVerifier, error) {
		once.Do(func() {
			provider, err := oidc.NewProvider(ctx, cfg.Issuer)
			if err != nil {
				initErr = err
				return
			}
			verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
		})
		return verifier, initErr
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				id := Identity{
					Subject: r.Header.Get("X-Gavel-Actor"),
					Role:    r.Header.Get("X-Gavel-Role"),
				}
				next.ServeHTTP(w, r.WithContext(
					context.WithValue(r.Context(), identityKey{}, id),
				))
				return
			}

			raw, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			v, err := verify(r.Context())
			if err != nil {
				logger.Error("oidc provider unavailable", "issuer", cfg.Issuer, "error", err)
				http.Error(w, "identity provider unavailable", http.StatusUnauthorized)
				return
			}

			token, err := v.Verify(r.Context(), raw)
			if err != nil {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			var claims map[string]json.RawMessage
			if err := token.Claims(&claims); err != nil {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			id := Identity{Subject: token.Subject}
			if raw, ok := claims[cfg.RoleClaim]; ok {
				_ = json.Unmarshal(raw, &id.Role)
			}

			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), identityKey{}, id),
			))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
