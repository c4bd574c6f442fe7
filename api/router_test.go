package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/service/accounts"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubParser map[string]*accounts.Claims

func (p stubParser) ParseToken(raw string) (*accounts.Claims, error) {
	if claims, ok := p[raw]; ok {
		return claims, nil
	}
	return nil, domain.ErrUnauthorized
}

type probeHandler struct{}

func (probeHandler) Register(r Routes) {
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.Public.GET("/public", ok)
	r.Staff.GET("/staff", ok)
	r.Admin.GET("/admin", ok)
	r.Owner.GET("/owner", ok)
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	parser := stubParser{
		"user":     {AccountID: 1, Roles: []domain.Role{domain.RoleUser}},
		"employee": {AccountID: 2, Roles: []domain.Role{domain.RoleEmployee}},
		"admin":    {AccountID: 3, Roles: []domain.Role{domain.RoleAdmin}},
		"owner":    {AccountID: 4, Roles: []domain.Role{domain.RoleOwner}},
	}
	return NewRouter(parser, probeHandler{})
}

func TestRouter_RoleGates(t *testing.T) {
	router := newTestRouter()

	testCases := []struct {
		path   string
		token  string
		status int
	}{
		{"/public", "", http.StatusOK},
		{"/staff", "", http.StatusUnauthorized},
		{"/staff", "bogus", http.StatusUnauthorized},
		{"/staff", "user", http.StatusForbidden},
		{"/staff", "employee", http.StatusOK},
		{"/staff", "admin", http.StatusOK},
		{"/staff", "owner", http.StatusOK},
		{"/admin", "employee", http.StatusForbidden},
		{"/admin", "admin", http.StatusOK},
		{"/owner", "admin", http.StatusForbidden},
		{"/owner", "owner", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.path+"/"+tc.token, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRouter_RequestID(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest("GET", "/staff", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)
}

func TestIDList(t *testing.T) {
	ids, ok := idList("1, 2,3")
	assert.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	for _, bad := range []string{"", "1,,2", "-1", "a"} {
		_, ok := idList(bad)
		assert.False(t, ok, bad)
	}
}
