package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Password policy limits. bcrypt only looks at the first 72 bytes, so longer
// passwords are refused instead of being silently truncated.
const (
	MinPasswordLength = 8
	MaxPasswordBytes  = 72
	minPasswordDigits = 2
	minPasswordSymbol = 1
)

// Password policy violations.
var (
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong   = errors.New("password must be at most 72 bytes long")
	ErrPasswordNoDigits  = errors.New("password must contain at least two digits")
	ErrPasswordNoSymbols = errors.New("password must contain at least one special character")
)

// PasswordHasher turns plaintext passwords into salted one-way hashes.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify reports whether plaintext matches hash. Malformed hashes yield false.
	Verify(plaintext, hash string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost, falling back to
// bcrypt.DefaultCost when cost is outside bcrypt's accepted range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a bcrypt hash of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares plaintext against hash in constant time.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// ValidatePassword enforces the password policy: at least 8 characters,
// two digits and one character that is neither a letter nor a digit.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}

	var digits, symbols int
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case isASCIIAlnum(r):
		default:
			symbols++
		}
	}
	if digits < minPasswordDigits {
		return ErrPasswordNoDigits
	}
	if symbols < minPasswordSymbol {
		return ErrPasswordNoSymbols
	}
	return nil
}

// isASCIIAlnum mirrors the [A-Za-z0-9] class, so accented letters count as special characters.
func isASCIIAlnum(r rune) bool {
	return r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
