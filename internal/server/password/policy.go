package password

import (
	"unicode"

	"github.com/akorchagin/authd/internal/common"
)

// MinLength is the minimum accepted password length.
const MinLength = 10

// CheckPolicy validates a candidate password against the policy: minimum
// length plus at least one letter and one digit. Returns
// common.ErrorWeakPassword when the candidate does not qualify.
func CheckPolicy(candidate string) error {
	if len(candidate) < MinLength {
		return common.ErrorWeakPassword
	}

	var hasLetter, hasDigit bool
	for _, r := range candidate {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return common.ErrorWeakPassword
	}

	return nil
}
