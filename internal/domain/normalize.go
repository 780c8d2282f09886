package domain

import "strings"

// NormalizeAccountID trims surrounding whitespace from an account identity.
// Identities are otherwise compared byte for byte.
func NormalizeAccountID(s string) AccountID {
	return AccountID(strings.TrimSpace(s))
}
