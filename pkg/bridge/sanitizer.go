package bridge

import (
	"errors"
	"fmt"
	"html"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// DefaultMaxTextSize is 64KB, enough for any inline text of a single element.
	DefaultMaxTextSize = 64 * 1024
	// EnvMaxTextSize is the environment variable to override the default
	EnvMaxTextSize = "LATTICE_MAX_TEXT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	markupStart  = regexp.MustCompile(`<[a-zA-Z/!?]`)
)

// SanitizeInput cleans a value coming from the surface by enforcing size
// limits, validating UTF-8 and stripping control characters other than
// newline, tab and carriage return.
func SanitizeInput(input string) (string, error) {
	limit := maxTextSize()
	if len(input) > limit {
		// Rejected rather than truncated so the document stays deterministic.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// SanitizeText is SanitizeInput for inline element text. Input without tags
// is plain text and is kept verbatim, entities included. Input carrying
// markup (a contenteditable innerHTML) is HTML: tags are stripped and
// entities decoded once, leaving plain text. The renderer escapes it again
// on output.
func SanitizeText(input string) (string, error) {
	s, err := SanitizeInput(input)
	if err != nil {
		return "", err
	}
	if !markupStart.MatchString(s) {
		return s, nil
	}
	return html.UnescapeString(strictPolicy.Sanitize(s)), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxTextSize() int {
	if val := os.Getenv(EnvMaxTextSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxTextSize
}
