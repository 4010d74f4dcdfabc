// Package profile builds normalized candidate profiles from extracted
// document text.
package profile

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/talentbase/qualifier/internal/types"
)

// ErrInvalidInput indicates the raw document text was missing entirely.
// Empty (but present) text is valid input and yields a zero-count profile.
var ErrInvalidInput = errors.New("profile: raw text is nil")

// FromText normalizes raw extracted text into a CandidateProfile. The text is
// trimmed of surrounding whitespace; word count is whitespace-delimited and
// char count is in runes. Semantic content is never altered.
func FromText(raw []byte, displayName string) (*types.CandidateProfile, error) {
	if raw == nil {
		return nil, ErrInvalidInput
	}

	text := strings.TrimSpace(string(raw))
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "Unknown Candidate"
	}

	return &types.CandidateProfile{
		CandidateID: uuid.New(),
		DisplayName: name,
		RawText:     text,
		WordCount:   len(strings.Fields(text)),
		CharCount:   utf8.RuneCountInString(text),
	}, nil
}
