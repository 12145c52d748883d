package auth

import (
	"context"
	"net/http"

	"ms-events/internal/models"
)

type contextKey string

const viewerKey contextKey = "viewer"
const claimsKey contextKey = "claims"

// Revoker answers whether a token id has been blacklisted by logout. Nil is
// allowed and means no revocation checking.
type Revoker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Middleware returns a required-auth middleware: requests without a valid,
// unrevoked bearer token are rejected with 401.
func Middleware(issuer *TokenIssuer, revoker Revoker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, issuer, revoker)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims)))
		})
	}
}

// OptionalMiddleware parses credentials when present but lets anonymous
// requests through with a zero viewer. Catalog reads use it so visibility
// filtering can distinguish staff from everyone else.
func OptionalMiddleware(issuer *TokenIssuer, revoker Revoker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := authenticate(w, r, issuer, revoker)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims)))
		})
	}
}

// RequireStaff rejects non-staff viewers with 403. Must run inside
// Middleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, ok := ViewerFrom(r.Context())
		if !ok || !viewer.IsStaff {
			http.Error(w, "staff access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authenticate(w http.ResponseWriter, r *http.Request, issuer *TokenIssuer, revoker Revoker) (*models.Claims, bool) {
	tokenString, err := ExtractTokenFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return nil, false
	}

	claims, err := issuer.Verify(tokenString)
	if err != nil {
		http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
		return nil, false
	}

	if revoker != nil {
		revoked, err := revoker.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			http.Error(w, "token verification failed", http.StatusInternalServerError)
			return nil, false
		}
		if revoked {
			http.Error(w, "token has been revoked", http.StatusUnauthorized)
			return nil, false
		}
	}
	return claims, true
}

func withIdentity(ctx context.Context, claims *models.Claims) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, viewerKey, ViewerFromClaims(claims))
}

// ViewerFrom extracts the authenticated viewer from the request context.
func ViewerFrom(ctx context.Context) (models.Viewer, bool) {
	viewer, ok := ctx.Value(viewerKey).(models.Viewer)
	return viewer, ok
}

// ClaimsFrom extracts the raw token claims, used by logout to revoke them.
func ClaimsFrom(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*models.Claims)
	return claims, ok
}
