package service

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/smallbiznis/carepoints/internal/activity/domain"
)

const (
	maxNotesLength    = 1000
	maxProofURLLength = 2048
)

var notesPolicy = bluemonday.StrictPolicy()

// sanitizeNotes strips markup from free-text notes. Empty input yields nil.
func sanitizeNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	cleaned := strings.TrimSpace(notesPolicy.Sanitize(*notes))
	if cleaned == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(cleaned) > maxNotesLength {
		return nil, domain.ErrInvalidNotes
	}
	return &cleaned, nil
}

func validateProofURL(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > maxProofURLLength {
		return nil, domain.ErrInvalidProofURL
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return nil, domain.ErrInvalidProofURL
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, domain.ErrInvalidProofURL
	}
	return &trimmed, nil
}
