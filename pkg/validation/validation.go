package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxIdentityLength    = 128
	MaxDisplayNameLength = 100
)

// IngressIDRegex matches provider-assigned ingress ids
var IngressIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateIdentity checks a broadcaster identity taken from a session.
// Identities become room names, so control characters are rejected.
func ValidateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return fmt.Errorf("identity is required")
	}
	if identity != strings.TrimSpace(identity) {
		return fmt.Errorf("identity must not have surrounding whitespace")
	}
	if len(identity) > MaxIdentityLength {
		return fmt.Errorf("identity is too long (max %d bytes)", MaxIdentityLength)
	}
	if !utf8.ValidString(identity) {
		return fmt.Errorf("identity is not valid UTF-8")
	}
	for _, r := range identity {
		if unicode.IsControl(r) {
			return fmt.Errorf("identity contains control characters")
		}
	}
	return nil
}

// ValidateDisplayName allows empty names; callers fall back to the identity.
func ValidateDisplayName(name string) error {
	if !utf8.ValidString(name) {
		return fmt.Errorf("display name contains invalid characters")
	}
	return ValidateStringLength(name, 0, MaxDisplayNameLength, "display name")
}

func ValidateIngressID(id string) error {
	if id == "" {
		return fmt.Errorf("ingress ID is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("ingress ID is too long (max 100 characters)")
	}
	if !IngressIDRegex.MatchString(id) {
		return fmt.Errorf("invalid ingress ID format")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateStringLength validates string length in runes
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
