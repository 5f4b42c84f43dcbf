package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Table is the login credential table: username -> stored password hash.
//
// Stored hashes may be bcrypt ("$2a$..."/"$2b$..."), salted SHA-256
// ("sha256$<salt>$<hex>"), or a bare SHA-256 hex digest.
type Table struct {
	hashes map[string]string
}

// NewTable pairs usernames with hashes by index.
func NewTable(usernames, hashes []string) *Table {
	t := &Table{hashes: make(map[string]string, len(usernames))}
	for i, u := range usernames {
		u = strings.TrimSpace(u)
		if u == "" || i >= len(hashes) {
			continue
		}
		t.hashes[u] = strings.TrimSpace(hashes[i])
	}
	return t
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.hashes)
}

// CheckLogin reports whether password matches the stored hash for username.
func (t *Table) CheckLogin(username, password string) bool {
	if t == nil {
		return false
	}
	stored, ok := t.hashes[strings.TrimSpace(username)]
	if !ok || stored == "" {
		return false
	}
	return Verify(stored, password)
}

// Verify compares password against a stored hash in any supported format.
func Verify(stored, password string) bool {
	switch {
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case strings.HasPrefix(stored, "sha256$"):
		parts := strings.SplitN(stored, "$", 3)
		if len(parts) != 3 {
			return false
		}
		return equalHex(parts[2], digest(parts[1]+password))
	default:
		return equalHex(stored, digest(password))
	}
}

// HashSalted produces a "sha256$<salt>$<hex>" entry for the credential table.
func HashSalted(salt, password string) string {
	return "sha256$" + salt + "$" + digest(salt+password)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func equalHex(a, b string) bool {
	a = strings.ToLower(a)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
