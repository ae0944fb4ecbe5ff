package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"lockerhub/internal/models"
	"lockerhub/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDecoder map[string]service.Identity

func (d stubDecoder) Decode(token string) (service.Identity, error) {
	if token == "expired" {
		return service.Identity{}, service.ErrTokenExpired
	}
	id, ok := d[token]
	if !ok {
		return service.Identity{}, service.ErrTokenMalformed
	}
	return id, nil
}

var decoder = stubDecoder{
	"user-token":  {UserID: "u1", Username: "alice", Role: models.RoleUser},
	"admin-token": {UserID: "a1", Username: "root", IsStaff: true, Role: models.RoleAdmin},
}

func newRouter(capability service.Capability) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/protected", Auth(decoder), RequireCapability(capability), func(c *gin.Context) {
		id, _ := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID})
	})
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestAuth(t *testing.T) {
	r := newRouter(service.CapViewLockers)

	w := do(r, "user-token")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"user_id":"u1"}`, w.Body.String())
	require.NotEmpty(t, w.Header().Get(requestIDHeader))

	w = do(r, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "token_malformed", errorCode(t, w))

	w = do(r, "expired")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "token_expired", errorCode(t, w))
}

func TestRequireCapability(t *testing.T) {
	selfServe := newRouter(service.CapSelfServe)
	require.Equal(t, http.StatusOK, do(selfServe, "user-token").Code)

	w := do(selfServe, "admin-token")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "forbidden", errorCode(t, w))

	manage := newRouter(service.CapManageLockers)
	require.Equal(t, http.StatusForbidden, do(manage, "user-token").Code)
	require.Equal(t, http.StatusOK, do(manage, "admin-token").Code)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, StatusFor(service.KindValidation))
	require.Equal(t, http.StatusConflict, StatusFor(service.KindConflict))
	require.Equal(t, http.StatusNotFound, StatusFor(service.KindNotFound))
	require.Equal(t, http.StatusUnauthorized, StatusFor(service.KindAuth))
	require.Equal(t, http.StatusForbidden, StatusFor(service.KindForbidden))
	require.Equal(t, http.StatusTooManyRequests, StatusFor(service.KindRateLimited))
	require.Equal(t, http.StatusInternalServerError, StatusFor(0))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal_server_error", errorCode(t, w))
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://lockers.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://lockers.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://lockers.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
