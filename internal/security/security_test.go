package security

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"matching password", "correct horse battery", hash, true},
		{"wrong password", "incorrect horse", hash, false},
		{"empty hash", "correct horse battery", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenIssuer(t *testing.T) {
	issuer := NewTokenIssuer("secret")
	// a fixed clock far from the wall clock: validity must follow it
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	raw, err := issuer.Issue(42, "sess-1", "admin", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Parse(raw, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	id, err := claims.UserID()
	if err != nil || id != 42 {
		t.Errorf("UserID() = %v, %v, want 42", id, err)
	}
	if claims.SessionID != "sess-1" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := issuer.Parse(raw, now.Add(2*time.Hour)); err != ErrInvalidToken {
		t.Errorf("Parse(after expiry) error = %v, want ErrInvalidToken", err)
	}

	if _, err := NewTokenIssuer("other").Parse(raw, now); err != ErrInvalidToken {
		t.Errorf("Parse(wrong secret) error = %v, want ErrInvalidToken", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "sid": "s"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := issuer.Parse(unsigned, now); err != ErrInvalidToken {
		t.Errorf("Parse(alg none) error = %v, want ErrInvalidToken", err)
	}
}

func TestCSRFGenerator(t *testing.T) {
	g := NewCSRFGenerator("secret")

	token, err := g.GenerateToken("session-a")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if !g.ValidateToken("session-a", token) {
		t.Error("ValidateToken() = false for own session")
	}
	if g.ValidateToken("session-b", token) {
		t.Error("ValidateToken() = true for another session")
	}
	if g.ValidateToken("session-a", "") {
		t.Error("ValidateToken() = true for empty token")
	}
	if _, err := g.GenerateToken(""); err == nil {
		t.Error("GenerateToken(\"\") expected error")
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.Allow("a") {
		t.Error("third request inside window should be limited")
	}
	if !rl.Allow("b") {
		t.Error("clients are limited independently")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("tokens refill after the window")
	}

	now = now.Add(5 * time.Minute)
	if removed := rl.Prune(); removed != 2 {
		t.Errorf("Prune() = %d, want 2", removed)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc.def")
	if got := BearerToken(r); got != "abc.def" {
		t.Errorf("BearerToken() = %q, want abc.def", got)
	}

	r.Header.Set("Authorization", "Basic xyz")
	if got := BearerToken(r); got != "" {
		t.Errorf("BearerToken() = %q, want empty", got)
	}
}
