// utils/validation.go
package utils

import (
	"regexp"
	"strings"
)

var (
	phoneRegex    = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)
	usernameRegex = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)
	phoneCleaner  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// NormalizePhone strips formatting characters from a phone number.
func NormalizePhone(phone string) string {
	return phoneCleaner.Replace(strings.TrimSpace(phone))
}

// ValidatePhone checks if a phone number is in a valid international format:
// optional + followed by 7-15 digits.
func ValidatePhone(phone string) bool {
	return phoneRegex.MatchString(NormalizePhone(phone))
}

func ValidateUsername(username string) bool {
	return usernameRegex.MatchString(username)
}
