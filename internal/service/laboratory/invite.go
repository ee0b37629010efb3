package laboratory

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

const (
	inviteAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	InviteCodeLength = 8
)

// GenerateInviteCode returns a random code of InviteCodeLength characters
// from [A-Z0-9]. The randomness is not cryptographic and the result is not
// checked against existing codes, so collisions between laboratories are
// possible.
func GenerateInviteCode() string {
	var b strings.Builder
	b.Grow(InviteCodeLength)
	for range InviteCodeLength {
		b.WriteByte(inviteAlphabet[rand.IntN(len(inviteAlphabet))])
	}
	return b.String()
}

// NormalizeInviteCode trims and upper-cases user input.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidInviteCode reports whether code is a normalized invite code.
func ValidInviteCode(code string) bool {
	if len(code) != InviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(inviteAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

func newLaboratoryID() string { return uuid.NewString() }
