package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-events/internal/auth"
	"ms-events/internal/models"
)

func viewerEcho(captured *models.Viewer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, _ := auth.ViewerFrom(r.Context())
		*captured = viewer
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRequiresToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	var viewer models.Viewer
	handler := auth.Middleware(issuer, nil)(viewerEcho(&viewer))

	// No header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token passes and the viewer lands in the context
	token, err := issuer.Issue(&models.User{ID: 7, Username: "alice"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), viewer.UserID)
	assert.Equal(t, "alice", viewer.Username)
}

func TestOptionalMiddlewareAllowsAnonymous(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	var viewer models.Viewer
	handler := auth.OptionalMiddleware(issuer, nil)(viewerEcho(&viewer))

	// Anonymous requests pass with a zero viewer
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.Viewer{}, viewer)

	// A presented token must still be valid
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := issuer.Issue(&models.User{ID: 7, Username: "alice", IsStaff: true})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, viewer.IsStaff)
}

func TestRequireStaff(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	var viewer models.Viewer
	handler := auth.Middleware(issuer, nil)(auth.RequireStaff(viewerEcho(&viewer)))

	// Non-staff viewers are rejected
	token, err := issuer.Issue(&models.User{ID: 7, Username: "alice"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token, err = issuer.Issue(&models.User{ID: 1, Username: "admin", IsStaff: true})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
