package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		username string
		wantErr  string
	}{
		{"Valid", "test_user123", ""},
		{"Dots Allowed", "amy.k", ""},
		{"Exactly Three", "abc", ""},
		{"Empty", "", "Missing username."},
		{"Upper", "Amy", "Username must be lowercase."},
		{"Too Short", "tu", "Username must be at least 3 characters long."},
		{"Illegal Chars", "user@123", "Username contains illegal character '@'."},
		{"Hyphen", "user-1", "Username contains illegal character '-'."},
		{"Too Long", strings.Repeat("a", MaxUsernameLength+1), "Username must not exceed 64 characters."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateDisplayName("Amy K"))
	assert.Error(t, ValidateDisplayName("   "))
	assert.Error(t, ValidateDisplayName(""))
	assert.Error(t, ValidateDisplayName(strings.Repeat("x", MaxDisplayNameLength+1)))
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	emailAt254 := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	assert.NoError(t, ValidateEmail("test@example.com"))
	assert.NoError(t, ValidateEmail(emailAt254))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("user@"))
}

func TestValidateCommentText(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateCommentText("nice serve"))
	assert.NoError(t, ValidateCommentText(strings.Repeat("é", MaxCommentLength)))
	assert.EqualError(t, ValidateCommentText(" \n"), "Comment must not be blank.")
	assert.Error(t, ValidateCommentText(strings.Repeat("a", MaxCommentLength+1)))
}

func TestRequireText(t *testing.T) {
	t.Parallel()
	assert.EqualError(t, RequireText("Display title", "\t"), "Display title must not be blank.")
	assert.NoError(t, RequireText("Display title", "Forehand"))
}
