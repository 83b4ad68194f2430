package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-signing-secret"

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestAuthenticateValidToken(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	var gotUserID int
	handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := GetUserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("GetUserIDFromContext error = %v", err)
		}
		gotUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	token := signTestToken(t, testSecret, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != 7 {
		t.Errorf("user id from context = %d, want 7", gotUserID)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with an invalid token")
	}))

	expired := signTestToken(t, testSecret, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signTestToken(t, "some-other-secret", jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not a bearer scheme", header: "Basic abc123"},
		{name: "garbage token", header: "Bearer not.a.token"},
		{name: "expired token", header: "Bearer " + expired},
		{name: "wrong signing key", header: "Bearer " + wrongKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want %q", got, "Bearer")
			}
		})
	}
}

func TestGetUserIDFromContextClaimShapes(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	run := func(claims jwt.MapClaims) (int, error, int) {
		var userID int
		var userErr error
		handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, userErr = GetUserIDFromContext(r.Context())
		}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, testSecret, claims))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return userID, userErr, w.Code
	}

	t.Run("string claim tolerated", func(t *testing.T) {
		userID, err, code := run(jwt.MapClaims{"user_id": "12", "exp": time.Now().Add(time.Hour).Unix()})
		if code != http.StatusOK || err != nil {
			t.Fatalf("code = %d, err = %v", code, err)
		}
		if userID != 12 {
			t.Errorf("user id = %d, want 12", userID)
		}
	})

	t.Run("missing claim", func(t *testing.T) {
		_, err, _ := run(jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
		if err == nil {
			t.Error("want error for token without user_id claim")
		}
	})

	t.Run("non-positive claim", func(t *testing.T) {
		_, err, _ := run(jwt.MapClaims{"user_id": 0, "exp": time.Now().Add(time.Hour).Unix()})
		if err == nil {
			t.Error("want error for non-positive user_id claim")
		}
	})
}
