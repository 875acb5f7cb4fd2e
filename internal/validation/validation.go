package validation

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"dashchat/internal/constants"
	"dashchat/internal/errors"
)

// ValidateID validates a user, task or message identifier
func ValidateID(id, fieldName string) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("%s cannot be empty", fieldName))
	}

	if len(id) > constants.MaxIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too long (max %d characters)", fieldName, constants.MaxIDLength))
	}

	for _, char := range id {
		if unicode.IsControl(char) || unicode.IsSpace(char) {
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("%s contains invalid characters", fieldName))
		}
	}

	return nil
}

// ValidateContent validates a message body. Content is checked after trimming.
func ValidateContent(content string, maxLength int) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.NewValidationError("content", "", "cannot be empty")
	}

	if maxLength > 0 && len([]rune(trimmed)) > maxLength {
		return errors.NewValidationError("content", "",
			fmt.Sprintf("too long (max %d characters)", maxLength))
	}

	if strings.ContainsRune(trimmed, '\x00') {
		return errors.NewValidationError("content", "", "contains invalid characters")
	}

	return nil
}

// ValidateMimeType checks mimeType against an allow-list
func ValidateMimeType(mimeType string, allowed []string) error {
	if mimeType == "" {
		return errors.New(errors.ErrCodeInvalidInput, "mime type cannot be empty")
	}

	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	for _, a := range allowed {
		if strings.EqualFold(a, base) {
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unsupported file type: %s", base))
}

// ValidateDocumentSize validates an upload size against a limit in megabytes
func ValidateDocumentSize(sizeBytes int64, maxSizeMB int) error {
	if sizeBytes < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "file size cannot be negative")
	}

	if sizeBytes == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "file is empty")
	}

	maxSizeBytes := int64(maxSizeMB) * constants.BytesPerMegabyte
	if sizeBytes > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("file too large: %d bytes (max %d MB)", sizeBytes, maxSizeMB))
	}

	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}

	return nil
}

// ValidateStringLength validates string length against bounds
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	if len(value) < minLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too short (min %d characters)", fieldName, minLength))
	}

	if len(value) > maxLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too long (max %d characters)", fieldName, maxLength))
	}

	return nil
}

// ValidateNumericRange validates numeric values against bounds
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too small (min %d)", fieldName, min))
	}

	if value > max {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max %d)", fieldName, max))
	}

	return nil
}

// ValidateTimeout validates timeout values
func ValidateTimeout(timeoutSec int, fieldName string) error {
	return ValidateNumericRange(timeoutSec, fieldName, 1, 3600)
}

// ValidateConnectionPool validates database connection pool settings
func ValidateConnectionPool(maxOpen, maxIdle int) error {
	if maxOpen < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "max open connections must be at least 1")
	}

	if maxOpen > 1000 {
		return errors.New(errors.ErrCodeInvalidInput, "max open connections too large (max 1000)")
	}

	if maxIdle < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max idle connections cannot be negative")
	}

	if maxIdle > maxOpen {
		return errors.New(errors.ErrCodeInvalidInput, "max idle connections cannot exceed max open connections")
	}

	return nil
}

// ValidateRetentionDays validates data retention period
func ValidateRetentionDays(days int) error {
	return ValidateNumericRange(days, "retention days", 1, 3650)
}

// ValidateFilePath rejects empty paths and paths that climb out of their directory with "..".
func ValidateFilePath(path string) error {
	if path == "" {
		return errors.New(errors.ErrCodeInvalidInput, "file path cannot be empty")
	}

	if strings.ContainsRune(path, '\x00') {
		return errors.New(errors.ErrCodeInvalidInput, "file path contains invalid characters")
	}

	for _, part := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if part == ".." {
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("path contains directory traversal: %s", path))
		}
	}

	return nil
}

// SanitizeFilename strips directories and characters that are unsafe in object keys
func SanitizeFilename(name string) string {
	name = filepath.Base(filepath.ToSlash(strings.TrimSpace(name)))
	if name == "." || name == "/" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}

	out := b.String()
	if strings.Trim(out, ".") == "" {
		return ""
	}
	if len(out) > constants.MaxFilenameLength {
		out = out[len(out)-constants.MaxFilenameLength:]
	}
	return out
}
