package validation

import (
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Email validation using RFC 5322, requiring a dotted domain
func validateEmail(value string) bool {
	if _, err := mail.ParseAddress(value); err != nil {
		return false
	}
	parts := strings.Split(value, "@")
	if len(parts) != 2 {
		return false
	}
	return strings.Contains(parts[1], ".")
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func validateUUID(value string) bool {
	return uuidPattern.MatchString(value)
}

// Date validation (ISO 8601: YYYY-MM-DD)
func validateDate(value string) bool {
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}

// DateTime validation (RFC 3339)
func validateDateTime(value string) bool {
	_, err := time.Parse(time.RFC3339Nano, value)
	return err == nil
}

// URI validation (RFC 3986), requiring scheme and host
func validateURI(value string) bool {
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

func validateIPv4(value string) bool {
	ip := net.ParseIP(value)
	return ip != nil && ip.To4() != nil
}

func validateIPv6(value string) bool {
	ip := net.ParseIP(value)
	return ip != nil && ip.To4() == nil
}

// DetectFormat returns the JSON Schema format name a string value satisfies,
// or "" if none is recognised.
func DetectFormat(value string) string {
	// Check in order of specificity (most specific first)
	switch {
	case validateUUID(value):
		return "uuid"
	case validateEmail(value):
		return "email"
	case validateIPv4(value):
		return "ipv4"
	case validateIPv6(value):
		return "ipv6"
	case validateDate(value):
		return "date"
	case validateDateTime(value):
		return "date-time"
	case validateURI(value):
		return "uri"
	}
	return ""
}
