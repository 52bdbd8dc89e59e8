// Package token encodes resource object IDs as virtual file names.
//
// A token has the fixed shape
//
//	@GMTAPI@-NNNNNN@
//
// where NNNNNN is the zero-padded decimal ID. Tokens are 16 printable ASCII
// characters with no path separators, so they can stand wherever a module
// expects a filename.
package token

import (
	"fmt"

	"github.com/wippyai/databroker/errors"
)

const (
	Prefix = "@GMTAPI@-"
	Suffix = "@"
	Digits = 6
	Len    = len(Prefix) + Digits + len(Suffix)

	// MaxID is the largest ID that fits in a token.
	MaxID = 999999
)

// Encode renders id as a token.
func Encode(id int) (string, error) {
	if id <= 0 || id > MaxID {
		return "", errors.New(errors.PhaseToken, errors.KindInvalidInput).
			Value(id).
			Detail("id %d outside 1..%d", id, MaxID).
			Build()
	}
	return fmt.Sprintf("%s%0*d%s", Prefix, Digits, id, Suffix), nil
}

// Decode parses a token back into an ID. It never panics and reports
// NotAToken for any input that is not exactly token-shaped.
func Decode(s string) (int, error) {
	if len(s) != Len || s[:len(Prefix)] != Prefix || s[Len-len(Suffix):] != Suffix {
		return 0, errors.NotAToken(s)
	}
	id := 0
	for i := len(Prefix); i < len(Prefix)+Digits; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errors.NotAToken(s)
		}
		id = id*10 + int(c-'0')
	}
	if id == 0 {
		return 0, errors.NotAToken(s)
	}
	return id, nil
}

// Is reports whether s is token-shaped.
func Is(s string) bool {
	_, err := Decode(s)
	return err == nil
}
