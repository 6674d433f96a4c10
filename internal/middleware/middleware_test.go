package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func uintPtr(v uint) *uint { return &v }

func testRouter(a *Auth) *gin.Engine {
	r := gin.New()
	r.POST("/buses/:id/location", a.RequireAuth(), RequireBusAccess(), func(c *gin.Context) {
		caller, _ := CallerFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": caller.UserID})
	})
	r.POST("/admin/ping", a.RequireAuth(), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTokenRoundTrip(t *testing.T) {
	a := NewAuth("test-secret")
	tok, err := a.GenerateToken(7, RoleConductor, uintPtr(3), time.Hour)
	require.NoError(t, err)

	claims, err := a.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	require.NotNil(t, claims.BusID)
	assert.Equal(t, uint(3), *claims.BusID)
}

func TestValidateTokenRejects(t *testing.T) {
	a := NewAuth("test-secret")

	expired, err := a.GenerateToken(1, RoleAdmin, nil, -time.Minute)
	require.NoError(t, err)
	_, err = a.ValidateToken(expired)
	assert.Error(t, err)

	other, err := NewAuth("other").GenerateToken(1, RoleAdmin, nil, time.Hour)
	require.NoError(t, err)
	_, err = a.ValidateToken(other)
	assert.Error(t, err)

	noBus, err := a.GenerateToken(1, RoleConductor, nil, time.Hour)
	require.NoError(t, err)
	_, err = a.ValidateToken(noBus)
	assert.Error(t, err)

	stranger, err := a.GenerateToken(1, "student", nil, time.Hour)
	require.NoError(t, err)
	_, err = a.ValidateToken(stranger)
	assert.Error(t, err)
}

func TestRequireBusAccess(t *testing.T) {
	a := NewAuth("test-secret")
	r := testRouter(a)

	own, _ := a.GenerateToken(7, RoleConductor, uintPtr(3), time.Hour)
	admin, _ := a.GenerateToken(1, RoleAdmin, nil, time.Hour)
	viewer, _ := a.GenerateToken(2, RoleViewer, nil, time.Hour)

	assert.Equal(t, http.StatusOK, do(r, "POST", "/buses/3/location", own).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "POST", "/buses/4/location", own).Code)
	assert.Equal(t, http.StatusOK, do(r, "POST", "/buses/4/location", admin).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "POST", "/buses/3/location", viewer).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "POST", "/buses/3/location", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, "POST", "/buses/x/location", own).Code)
}

func TestRequireRole(t *testing.T) {
	a := NewAuth("test-secret")
	r := testRouter(a)

	admin, _ := a.GenerateToken(1, RoleAdmin, nil, time.Hour)
	conductor, _ := a.GenerateToken(7, RoleConductor, uintPtr(3), time.Hour)

	assert.Equal(t, http.StatusNoContent, do(r, "POST", "/admin/ping", admin).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "POST", "/admin/ping", conductor).Code)
}

func TestEnableCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := EnableCORS(next, []string{"https://erp.college.edu"})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://erp.college.edu")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://erp.college.edu", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
