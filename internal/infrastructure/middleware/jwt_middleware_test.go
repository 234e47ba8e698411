package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"mentor_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

func newAuthedEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	jwt.Init("middleware-test-secret", 5)
	r := gin.New()
	r.GET("/me", JWTAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserIDKey))
	})
	return r
}

func TestJWTAuthAcceptsHeaderAndQuery(t *testing.T) {
	r := newAuthedEngine()
	token, err := jwt.GenerateAccessToken("mentor-42")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "mentor-42" {
		t.Fatalf("header auth: %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	if w.Code != http.StatusOK || w.Body.String() != "mentor-42" {
		t.Fatalf("query auth: %d %q", w.Code, w.Body.String())
	}
}

func TestJWTAuthRejects(t *testing.T) {
	r := newAuthedEngine()
	cases := map[string]string{
		"missing":     "",
		"not bearer":  "Basic abc",
		"garbage":     "Bearer abc.def.ghi",
		"empty token": "Bearer ",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d", w.Code)
			}
		})
	}
}
