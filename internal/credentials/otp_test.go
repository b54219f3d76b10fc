package credentials

import (
	"strings"
	"testing"
)

func TestGenerateOTP(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP() error = %v", err)
		}
		if len(code) != OTPLength {
			t.Errorf("code length = %d, want %d", len(code), OTPLength)
		}
		if strings.Trim(code, digits) != "" {
			t.Errorf("code %q contains non-digits", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct codes in 50 draws", len(seen))
	}
}

func TestVerifyOTP(t *testing.T) {
	hash := HashOTP("123456")

	tests := []struct {
		name string
		code string
		want bool
	}{
		{"exact", "123456", true},
		{"surrounding space", " 123456 ", true},
		{"wrong", "654321", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyOTP(tt.code, hash); got != tt.want {
				t.Errorf("VerifyOTP(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}

	if hash == "123456" {
		t.Error("HashOTP() must not return the code itself")
	}
}

func TestUsernameFromEmail(t *testing.T) {
	tests := []struct {
		email      string
		wantPrefix string
	}{
		{"Jane.Doe@example.com", "janedoe"},
		{"x@example.com", "learner"},
		{"averyveryverylongemailaddressname@example.com", "averyveryverylongema"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got, err := UsernameFromEmail(tt.email)
			if err != nil {
				t.Fatalf("UsernameFromEmail() error = %v", err)
			}
			if !strings.HasPrefix(got, tt.wantPrefix) || len(got) != len(tt.wantPrefix)+4 {
				t.Errorf("UsernameFromEmail() = %q, want %q + 4 digits", got, tt.wantPrefix)
			}
		})
	}
}
