package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"roofsite-go/internal/model"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/token"

	"github.com/gin-gonic/gin"
)

type fakeUsers struct {
	service.UserService
	revoked map[string]bool
}

func (f *fakeUsers) GetProfile(username string) (*model.User, error) {
	if username != "roofer" {
		return nil, errors.New("not found")
	}
	return &model.User{ID: 5, Username: username}, nil
}

func (f *fakeUsers) IsRevoked(_ context.Context, tok string) bool {
	return f.revoked[tok]
}

func TestAuthMiddleware(t *testing.T) {
	jwt := token.NewJWTManager("secret", 1, 1)
	good, _ := jwt.GenerateToken(5, "roofer", "USER")
	revoked, _ := jwt.GenerateToken(5, "roofer", "ADMIN")
	ghost, _ := jwt.GenerateToken(9, "ghost", "USER")
	refresh, _ := jwt.GenerateRefreshToken(5, "roofer", "USER")
	users := &fakeUsers{revoked: map[string]bool{revoked: true}}

	r := gin.New()
	r.GET("/me", AuthMiddleware(jwt, users), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUser(c).Username)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no bearer prefix", good, http.StatusUnauthorized},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized},
		{"unknown user", "Bearer " + ghost, http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusOK && w.Body.String() != "roofer" {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}
}

func TestOptionalAuthFallsBackToAnonymous(t *testing.T) {
	jwt := token.NewJWTManager("secret", 1, 1)
	good, _ := jwt.GenerateToken(5, "roofer", "USER")
	users := &fakeUsers{}

	r := gin.New()
	r.GET("/chat", OptionalAuth(jwt, users), func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.String(http.StatusOK, u.Username)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	for header, want := range map[string]string{
		"":               "anonymous",
		"Bearer garbage": "anonymous",
		"Bearer " + good: "roofer",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/chat", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Errorf("header %q: %d %q, want %q", header, w.Code, w.Body.String(), want)
		}
	}
}
