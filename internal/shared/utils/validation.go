package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String length limits
const (
	MaxIDLength     = 128
	MaxFolderLength = 192
	MaxNameLength   = 256
	MaxQueryLength  = 256
)

var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// FolderPattern allows alphanumeric, hyphens, underscores and dots
	// (install directories are "<id>-<version>")
	FolderPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an extension or modal id field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateFolderName validates an install-directory name. Rejects path
// traversal and separators so a folder can never address anything outside
// the extensions directory.
func ValidateFolderName(folder string) error {
	if err := ValidateString(folder, "folder", 1, MaxFolderLength, true); err != nil {
		return err
	}

	if strings.Contains(folder, "..") ||
		strings.ContainsAny(folder, `/\`) ||
		strings.HasPrefix(folder, ".") {
		return fmt.Errorf("invalid folder name")
	}

	if !FolderPattern.MatchString(folder) {
		return fmt.Errorf("folder contains invalid characters")
	}

	return nil
}

// SanitizePathComponent reduces an arbitrary manifest value to something
// safe to use as a directory-name component.
func SanitizePathComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), ".-")
	if len(out) > MaxFolderLength/2 {
		out = out[:MaxFolderLength/2]
	}
	return out
}
