// Package validation holds the user-facing input rules shared by services.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxUsernameLength    = 64
	MaxCommentLength     = 10000
	MaxDisplayNameLength = 128
)

var illegalUsernameChar = regexp.MustCompile(`[^\w.]`)

// ValidateUsername checks the handle rules: lowercase, at least three
// characters, word characters and dots only.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("Missing username.")
	}
	if strings.IndexFunc(username, unicode.IsUpper) >= 0 {
		return errors.New("Username must be lowercase.")
	}
	if utf8.RuneCountInString(username) <= 2 {
		return errors.New("Username must be at least 3 characters long.")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("Username must not exceed %d characters.", MaxUsernameLength)
	}
	if m := illegalUsernameChar.FindString(username); m != "" {
		return fmt.Errorf("Username contains illegal character '%s'.", m)
	}
	return nil
}

// ValidateDisplayName rejects blank names.
func ValidateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("Invalid display name.")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return fmt.Errorf("Display name must not exceed %d characters.", MaxDisplayNameLength)
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}

	if len(email) > 254 {
		return errors.New("email must not exceed 254 characters")
	}

	return nil
}

// RequireText rejects blank values, naming field in the message.
func RequireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be blank.", field)
	}
	return nil
}

// ValidateCommentText rejects blank and overlong comments.
func ValidateCommentText(text string) error {
	if err := RequireText("Comment", text); err != nil {
		return err
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return fmt.Errorf("Comment must not exceed %d characters.", MaxCommentLength)
	}
	return nil
}
