package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for new hashes. Tests lower it.
var BcryptCost = 12

const (
	MinPasswordLen = 8
	MaxPasswordLen = 72 // bcrypt ignores anything past 72 bytes
)

var ErrEmptyPassword = errors.New("password cannot be empty")

// PasswordValidationError lists the rules a candidate password broke.
// Error() stays generic; Problems is for logs.
type PasswordValidationError struct {
	Problems []string
}

func (e *PasswordValidationError) Error() string {
	return "password does not meet requirements"
}

var commonPasswords = map[string]struct{}{
	"password":     {},
	"password1":    {},
	"password123":  {},
	"password123!": {},
	"12345678":     {},
	"123456789":    {},
	"qwerty123":    {},
	"letmein1":     {},
	"welcome1":     {},
	"passw0rd":     {},
	"trustno1":     {},
	"iloveyou":     {},
	"sunshine":     {},
	"football":     {},
	"contraseña":   {},
	"contrasena1":  {},
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// ComparePassword returns nil when password matches the stored hash.
func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// CompareDummy burns roughly the same time as ComparePassword so unknown
// accounts are not distinguishable by response latency.
func CompareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// ValidatePassword checks length, character classes and a short blocklist.
func ValidatePassword(password string) error {
	var problems []string

	if n := len(password); n < MinPasswordLen {
		problems = append(problems, fmt.Sprintf("shorter than %d characters", MinPasswordLen))
	} else if n > MaxPasswordLen {
		problems = append(problems, fmt.Sprintf("longer than %d bytes", MaxPasswordLen))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	if !upper {
		problems = append(problems, "no uppercase letter")
	}
	if !lower {
		problems = append(problems, "no lowercase letter")
	}
	if !digit {
		problems = append(problems, "no digit")
	}
	if !special {
		problems = append(problems, "no special character")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		problems = append(problems, "too common")
	}

	if len(problems) > 0 {
		return &PasswordValidationError{Problems: problems}
	}
	return nil
}
