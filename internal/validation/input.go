package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Input limits.
const (
	MinUsernameLength           = 3
	MaxUsernameLength           = 30
	MinListingTitleLength       = 3
	MaxListingTitleLength       = 200
	MaxListingDescriptionLength = 5000
	MinDisputeDescriptionLength = 10
	MaxDisputeDescriptionLength = 5000
	MaxPriceItemDescription     = 300
	MaxSettlementMessageLength  = 2000
)

// MaxPrice caps a single price list position.
var MaxPrice = decimal.NewFromInt(1_000_000)

// ValidateLength checks a string's length in runes.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	usernameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// ValidateEmail checks the basic shape of an email address.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("invalid email format")
	}
	local, domain := parts[0], parts[1]

	if len(local) == 0 || len(local) > 64 {
		return fmt.Errorf("email local part must be 1 to 64 characters")
	}
	if len(domain) == 0 || len(domain) > 255 {
		return fmt.Errorf("email domain must be 1 to 255 characters")
	}
	if !emailLocalRegex.MatchString(local) {
		return fmt.Errorf("email local part contains invalid characters")
	}
	if !emailDomainRegex.MatchString(domain) {
		return fmt.Errorf("email domain has an invalid format")
	}
	return nil
}

// ValidateNonEmpty rejects blank strings.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateUsername checks a handle.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if err := ValidateLength("username", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username may contain only letters, digits and underscores")
	}
	if unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("username cannot start with a digit")
	}
	return nil
}

// ValidateListingTitle checks a service listing title.
func ValidateListingTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("listing title is required")
	}
	return ValidateLength("listing title", title, MinListingTitleLength, MaxListingTitleLength)
}

// ValidateListingDescription checks a service listing description.
func ValidateListingDescription(description string) error {
	return ValidateLength("listing description", strings.TrimSpace(description), 0, MaxListingDescriptionLength)
}

// ValidateDisputeDescription checks the free-text grounds of a dispute.
func ValidateDisputeDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("dispute description is required")
	}
	return ValidateLength("dispute description", description, MinDisputeDescriptionLength, MaxDisputeDescriptionLength)
}

// ValidatePrice checks a price list position's price.
func ValidatePrice(price decimal.Decimal) error {
	if price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("price must be positive")
	}
	if price.GreaterThan(MaxPrice) {
		return fmt.Errorf("price cannot exceed %s", MaxPrice)
	}
	return nil
}
