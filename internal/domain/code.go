package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	CodeLen       = 9
	codeGroupSize = 3
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// MeetingCode is the canonical (upper-case, no separators) room code.
type MeetingCode string

// ParseCode accepts user input such as "abc-123-xyz" and returns the
// canonical code.
func ParseCode(raw string) (MeetingCode, error) {
	var b strings.Builder
	b.Grow(CodeLen)
	for _, r := range raw {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			continue
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		default:
			return "", ErrInvalidCode
		}
	}
	if b.Len() != CodeLen {
		return "", ErrInvalidCode
	}
	return MeetingCode(b.String()), nil
}

// NewCode returns a random code from crypto/rand.
func NewCode() MeetingCode {
	buf := make([]byte, CodeLen)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("meeting code: " + err.Error())
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return MeetingCode(buf)
}

// Display groups the code in threes: ABC-123-XYZ.
func (c MeetingCode) Display() string {
	s := string(c)
	if len(s) != CodeLen {
		return s
	}
	parts := make([]string, 0, CodeLen/codeGroupSize)
	for i := 0; i < CodeLen; i += codeGroupSize {
		parts = append(parts, s[i:i+codeGroupSize])
	}
	return strings.Join(parts, "-")
}

func (c MeetingCode) String() string { return string(c) }
