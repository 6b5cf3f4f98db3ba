package types

import (
	"fmt"
	"unicode/utf8"
)

const (
	MaxBioLength   = 500
	MaxTopicLength = 50
)

// ValidateProfile checks the free-text profile fields. Lengths are counted in
// characters, matching the VARCHAR columns.
func ValidateProfile(bio string, topics []string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return fmt.Errorf("%w: bio must be at most %d characters", ErrValidation, MaxBioLength)
	}
	for _, t := range topics {
		if utf8.RuneCountInString(t) > MaxTopicLength {
			return fmt.Errorf("%w: topic %q exceeds %d characters", ErrValidation, t, MaxTopicLength)
		}
	}
	return nil
}
