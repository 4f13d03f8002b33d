package service

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/microcosm-cc/bluemonday"
)

// Input limits
const (
	MaxSubjectRunes = 255
	MaxBodyBytes    = 65535
	MaxCommentRunes = 1000
)

// plainRounds bounds decode/strip passes for nested entity encodings
const plainRounds = 4

// sanitizer strips markup from user input before it is stored. Rendering is
// the client's job; this only keeps scripts and unknown tags out of the store.
type sanitizer struct {
	plain *bluemonday.Policy
	body  *bluemonday.Policy
}

func newSanitizer() *sanitizer {
	return &sanitizer{
		plain: bluemonday.StrictPolicy(),
		body:  bluemonday.UGCPolicy(),
	}
}

// Plain returns s without any tags, entities decoded back to text. Stripping
// repeats until decoding no longer yields new markup; input that never
// settles is kept in its escaped form.
func (z *sanitizer) Plain(s string) string {
	for i := 0; i < plainRounds; i++ {
		next := html.UnescapeString(z.plain.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(z.plain.Sanitize(s))
}

// Body returns s with only user-generated-content safe markup kept
func (z *sanitizer) Body(s string) string {
	return strings.TrimSpace(z.body.Sanitize(s))
}

// subject sanitizes and validates a subject; required controls whether empty is an error
func (z *sanitizer) subject(s string, required bool) (string, error) {
	s = z.Plain(s)
	if s == "" && required {
		return "", common.ErrSubjectRequired
	}
	if utf8.RuneCountInString(s) > MaxSubjectRunes {
		return "", common.ErrSubjectTooLong
	}
	return s, nil
}

func (z *sanitizer) messageBody(s string) (string, error) {
	s = z.Body(s)
	if s == "" {
		return "", common.ErrBodyRequired
	}
	if len(s) > MaxBodyBytes {
		return "", common.ErrBodyTooLong
	}
	return s, nil
}

func (z *sanitizer) comment(s string) (string, error) {
	s = z.Plain(s)
	if s == "" {
		return "", common.ErrCommentRequired
	}
	if utf8.RuneCountInString(s) > MaxCommentRunes {
		return "", common.ErrCommentTooLong
	}
	return s, nil
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
