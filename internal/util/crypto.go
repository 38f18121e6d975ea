package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const tokenBytes = 32

// AccessCodeChars omits O, I, 0 and 1, which clients mistype when reading a code aloud.
const AccessCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateAccessCode draws a uniformly random code of the given length.
func GenerateAccessCode(length int) (string, error) {
	max := big.NewInt(int64(len(AccessCodeChars)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate access code: %w", err)
		}
		code[i] = AccessCodeChars[n.Int64()]
	}
	return string(code), nil
}

// NormalizeCode makes code comparison case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HmacSHA256 keys stored session tokens, so a leaked table cannot be replayed.
func HmacSHA256(secret, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// MaskCode keeps two leading characters for correlating log lines. Codes shorter
// than six characters are hidden entirely.
func MaskCode(code string) string {
	if len(code) < 6 {
		return "****"
	}
	return code[:2] + "******"
}
