package validation

import (
	"fmt"
	"unicode"
)

// ValidatePassword enforces a minimum of 8 characters with at least one
// upper-case letter, one lower-case letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one upper-case letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lower-case letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one digit")
	}
	return nil
}
