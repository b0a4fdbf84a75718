package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AccountLen is the byte length of an account identifier.
const AccountLen = 20

// Account identifies a caller, an owner or an admin. The canonical form is "0x" followed by
// 40 lower-case hex digits.
type Account string

// ParseAccount validates s and returns its canonical form.
func ParseAccount(s string) (Account, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2+2*AccountLen || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", fmt.Errorf("malformed account %q: want 0x followed by %d hex digits", s, 2*AccountLen)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", fmt.Errorf("malformed account %q: %w", s, err)
	}
	return Account("0x" + strings.ToLower(s[2:])), nil
}

// MustAccount is ParseAccount for literals; it panics on malformed input.
func MustAccount(s string) Account {
	a, err := ParseAccount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Valid reports whether a is a well-formed account in any letter case.
func (a Account) Valid() bool {
	_, err := ParseAccount(string(a))
	return err == nil
}

// Equal compares two accounts ignoring letter case.
func (a Account) Equal(b Account) bool {
	return strings.EqualFold(string(a), string(b))
}

func (a Account) String() string { return string(a) }

// AdminPair is the two identities allowed to call admin-gated operations.
type AdminPair struct {
	Admin1 Account
	Admin2 Account
}

// Contains reports whether a is one of the pair.
func (p AdminPair) Contains(a Account) bool {
	if a == "" {
		return false
	}
	return p.Admin1.Equal(a) || p.Admin2.Equal(a)
}

// IsZero reports whether the pair was never initialized.
func (p AdminPair) IsZero() bool {
	return p.Admin1 == "" && p.Admin2 == ""
}
