// Package masking redacts member data before it reaches the audit trail.
package masking

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const maskToken = "****"

type Rule int

const (
	// Keep stores the value as is.
	Keep Rule = iota
	// Code keeps a redemption code's category prefix and last four characters.
	Code
	// Text drops free text such as activity notes and keeps only its length.
	Text
	// Link keeps only the scheme and host of a proof link.
	Link
)

var rules = map[string]Rule{
	"code":            Code,
	"redemption_code": Code,
	"notes":           Text,
	"proof_url":       Link,
}

// RuleFor returns the masking rule for a metadata key.
func RuleFor(key string) Rule {
	return rules[strings.ToLower(strings.TrimSpace(key))]
}

// Metadata returns a copy of input with sensitive values masked. Nested maps
// are walked and blank keys dropped.
func Metadata(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = maskValue(RuleFor(key), value)
	}
	return out
}

func maskValue(rule Rule, value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return Metadata(cast)
	case string:
		switch rule {
		case Code:
			return MaskCode(cast)
		case Text:
			return RedactText(cast)
		case Link:
			return MaskLink(cast)
		}
	}
	return value
}

// MaskCode turns GIFT-CARD-01J9ZK3WXYZ into GIFT-CARD-****WXYZ.
func MaskCode(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	prefix, remainder := "", trimmed
	if idx := strings.LastIndex(trimmed, "-"); idx > 0 && idx < len(trimmed)-1 {
		prefix, remainder = trimmed[:idx+1], trimmed[idx+1:]
	}
	if len(remainder) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + remainder[len(remainder)-4:]
}

func RedactText(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("[redacted %d chars]", utf8.RuneCountInString(trimmed))
}

func MaskLink(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return maskToken
	}
	return parsed.Scheme + "://" + parsed.Host + "/" + maskToken
}
