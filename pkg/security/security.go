package security

import (
	"strings"
	"unicode/utf8"

	"github.com/jobtrack/jobtrack/pkg/core"
)

// Security limits and configuration
const (
	// MaxOwnerLength is the maximum length for job owners
	MaxOwnerLength = 50

	// MaxKeyLength is the maximum length for idempotency keys
	MaxKeyLength = 255

	// MaxWebhookURLLength is the maximum length for webhook URLs
	MaxWebhookURLLength = 255

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxDataSize is the maximum size in bytes for serialized job data (1MB)
	MaxDataSize = 1 << 20

	// MaxReclaims is the hard limit for reclaim attempts on a single key
	MaxReclaims = 100

	// DefaultMaxReclaims is the default cap on reclaims of a failing key
	DefaultMaxReclaims = 10
)

// ValidateOwner validates a job owner
func ValidateOwner(owner string) error {
	if owner == "" {
		return core.ErrEmptyOwner
	}
	if len(owner) > MaxOwnerLength {
		return core.ErrOwnerTooLong
	}
	return nil
}

// ValidateKey validates an idempotency key
func ValidateKey(key string) error {
	if key == "" {
		return core.ErrEmptyKey
	}
	if len(key) > MaxKeyLength {
		return core.ErrKeyTooLong
	}
	return nil
}

// ValidateWebhookURL validates a webhook URL length; an empty URL is valid
// (webhooks are optional).
func ValidateWebhookURL(url string) error {
	if len(url) > MaxWebhookURLLength {
		return core.ErrWebhookURLTooLong
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	// Truncate if too long
	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampReclaims ensures a reclaim cap is within limits
func ClampReclaims(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxReclaims {
		return MaxReclaims
	}
	return n
}
