package errors

import (
	"strings"
	"unicode"
)

// maxIDLength bounds element ids accepted from external input.
const maxIDLength = 1024

// ValidateElementID validates a vertex or edge id supplied from outside the
// triple grammar (HTTP paths, CLI arguments).
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - No control characters (a newline would break the line format)
//   - Maximum length of 1024 bytes
func ValidateElementID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidElementID, "element id cannot be empty")
	}

	if len(id) > maxIDLength {
		return New(ErrCodeInvalidElementID, "element id too long (max %d characters)", maxIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidElementID, "element id contains invalid control characters")
		}
	}

	return nil
}

// ValidateIRI checks that s can be written between angle brackets.
func ValidateIRI(s string) error {
	if s == "" {
		return New(ErrCodeInvalidIRI, "IRI cannot be empty")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '<' || r == '>' || r == '"' {
			return New(ErrCodeInvalidIRI, "IRI contains invalid character %q", r)
		}
	}
	return nil
}

// ValidatePath validates a file path referenced from imported content.
// It prevents path traversal when streaming values are imported on behalf
// of a remote caller.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	return nil
}
