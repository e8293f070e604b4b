package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bluewell/internal/database"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	e := echo.New()
	var seen string
	h := JwtAuthMiddleware(func(c echo.Context) error {
		seen, _ = c.Get("user_id").(string)
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/survey", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec, seen
}

func TestJwtAuthMiddlewareAcceptsSignedToken(t *testing.T) {
	store := database.NewMemoryStore()
	require.NoError(t, InitAuthPackage(store, Options{SessionSecret: "s3cret"}))

	token, err := GenerateAccessToken("user-42", "student@duke.edu", "Sam")
	require.NoError(t, err)

	rec, userID := serve(t, "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-42", userID)

	u, err := store.GetUserByID(context.Background(), "user-42")
	require.NoError(t, err)
	assert.Equal(t, "student@duke.edu", u.Email.String)
}

func TestJwtAuthMiddlewareRejectsBadTokens(t *testing.T) {
	require.NoError(t, InitAuthPackage(database.NewMemoryStore(), Options{SessionSecret: "s3cret"}))

	rec, _ := serve(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJwtAuthMiddlewareDevBypass(t *testing.T) {
	require.NoError(t, InitAuthPackage(database.NewMemoryStore(), Options{DevAuthBypass: true, DevUserID: "dev"}))

	rec, userID := serve(t, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "dev", userID)
}

func TestInitAuthPackageRequiresSecret(t *testing.T) {
	assert.Error(t, InitAuthPackage(database.NewMemoryStore(), Options{}))
}
