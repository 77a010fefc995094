package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const codeDigits = 6

// digitBound is the largest multiple of 10 that fits in a byte. Bytes at or above it are
// redrawn so every digit is equally likely.
const digitBound = 250

// GenerateCode returns a 6-digit numeric code (e.g. "482910") drawn from crypto/rand.
func GenerateCode() (string, error) {
	return generateCode(rand.Read)
}

func generateCode(read func([]byte) (int, error)) (string, error) {
	s := make([]byte, 0, codeDigits)
	buf := make([]byte, codeDigits)
	for len(s) < codeDigits {
		if _, err := read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= digitBound {
				continue
			}
			s = append(s, '0'+b%10)
			if len(s) == codeDigits {
				break
			}
		}
	}
	return string(s), nil
}

// HashCode returns the hex SHA-256 of code. Stores keep only this hash.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeMatches compares the hash of code with storedHash in constant time.
func CodeMatches(code, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(storedHash)) == 1
}

// ValidCodeFormat reports whether code is exactly six ASCII digits.
func ValidCodeFormat(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
