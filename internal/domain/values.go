package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidationError reports which submitted field was malformed and why.
// It never carries the raw value, so it is safe to log.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Email is a validated, lower-cased email address. It is the natural
// deduplication key for subscribers.
type Email string

// Name is a validated subscriber display name.
type Name string

func (e Email) String() string { return string(e) }
func (n Name) String() string  { return string(n) }

const (
	maxEmailLen = 256
	maxLocalLen = 64
	maxNameLen  = 256
)

// forbiddenNameChars are characters unsafe in downstream contexts
// (HTML bodies, headers, shell-adjacent tooling).
const forbiddenNameChars = `/()"<>\{}`

// ParseEmail validates a raw email address and returns it lower-cased.
// The accepted grammar is deliberately narrow: one @, non-empty local part
// and domain, a dot in the domain, no whitespace or control characters.
// Anything fancier (display names, comments, quoted locals) is rejected so
// that the stored dedup key is exactly what the subscriber typed.
func ParseEmail(raw string) (Email, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(s) > maxEmailLen {
		return "", &ValidationError{Field: "email", Reason: fmt.Sprintf("must not exceed %d characters", maxEmailLen)}
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "", &ValidationError{Field: "email", Reason: "must not contain whitespace or control characters"}
		}
	}

	at := strings.Index(s, "@")
	if at < 0 || at != strings.LastIndex(s, "@") {
		return "", &ValidationError{Field: "email", Reason: "must contain exactly one @"}
	}
	local, dom := s[:at], s[at+1:]
	if local == "" {
		return "", &ValidationError{Field: "email", Reason: "missing local part"}
	}
	if len(local) > maxLocalLen {
		return "", &ValidationError{Field: "email", Reason: fmt.Sprintf("local part must not exceed %d characters", maxLocalLen)}
	}
	if dom == "" {
		return "", &ValidationError{Field: "email", Reason: "missing domain"}
	}
	if !strings.Contains(dom, ".") || strings.HasPrefix(dom, ".") || strings.HasSuffix(dom, ".") {
		return "", &ValidationError{Field: "email", Reason: "domain is malformed"}
	}

	return Email(strings.ToLower(s)), nil
}

// ParseName validates a raw display name. It rejects empty or
// whitespace-only input, overlong input, control characters, and a small
// denylist of structural characters.
func ParseName(raw string) (Name, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(raw) > maxNameLen {
		return "", &ValidationError{Field: "name", Reason: fmt.Sprintf("must not exceed %d characters", maxNameLen)}
	}
	for _, r := range raw {
		if unicode.IsControl(r) {
			return "", &ValidationError{Field: "name", Reason: "must not contain control characters"}
		}
		if strings.ContainsRune(forbiddenNameChars, r) {
			return "", &ValidationError{Field: "name", Reason: fmt.Sprintf("must not contain %q", r)}
		}
	}

	return Name(raw), nil
}
