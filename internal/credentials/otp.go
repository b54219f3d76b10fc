// Package credentials generates one-time codes and generated usernames.
package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
	"regexp"
	"strings"
)

// OTPLength is the number of digits in a one-time code
const OTPLength = 6

const digits = "0123456789"

// GenerateOTP returns a random numeric one-time code
func GenerateOTP() (string, error) {
	return randomString(digits, OTPLength)
}

// HashOTP returns the hex SHA-256 of a code; only the hash is stored
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// VerifyOTP compares a submitted code against a stored hash in constant time
func VerifyOTP(code, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashOTP(code)), []byte(hash)) == 1
}

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

// UsernameFromEmail derives a username candidate from an email address with a
// random numeric suffix, for accounts created through OAuth
func UsernameFromEmail(email string) (string, error) {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	base := usernameStrip.ReplaceAllString(local, "")
	if len(base) < 3 {
		base = "learner"
	}
	if len(base) > 20 {
		base = base[:20]
	}

	suffix, err := randomString(digits, 4)
	if err != nil {
		return "", err
	}
	return base + suffix, nil
}

func randomString(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		out[i] = alphabet[num.Int64()]
	}
	return string(out), nil
}
