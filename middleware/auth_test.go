package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"design-studio/core"
	"design-studio/handlers/auth"
)

func TestAuthJWT(t *testing.T) {
	auth.SetSecret([]byte("middleware-secret"))
	t.Cleanup(func() { auth.SetSecret(nil) })

	token, err := auth.CreateJWT(&core.User{Subject: "user-9", Login: "nine"})
	if err != nil {
		t.Fatalf("CreateJWT() failed: %v", err)
	}

	var seen string
	h := AuthJWT(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := Claims(r)
		if !ok {
			t.Error("claims missing from context")
			return
		}
		seen = claims.Subject
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusNoContent},
		{"lowercase scheme", "bearer " + token, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"no token", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/designs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusNoContent && seen != "user-9" {
				t.Errorf("subject = %q, want user-9", seen)
			}
		})
	}
}
