package media

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// disallowed matches every character that may not appear in a handle.
var disallowed = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Sanitize turns an uploaded file name into a safe single path element.
//
//  1. Names containing control characters are rejected.
//  2. NFKD-normalizes and drops everything outside ASCII ("é" becomes "e").
//  3. Path separators become spaces, whitespace runs become "_".
//  4. Characters outside [A-Za-z0-9_.-] are removed.
//  5. Leading and trailing "." and "_" are trimmed.
//  6. Names longer than maxTokenBytes lose the end of their base name; the
//     extension is kept.
//
// An empty result, or an extension too long to keep, yields ErrInvalidName.
func Sanitize(name string) (string, error) {
	token, err := sanitizeChars(name)
	if err != nil {
		return "", err
	}
	if len(token) <= maxTokenBytes {
		return token, nil
	}

	ext := path.Ext(token)
	if len(ext) >= maxTokenBytes {
		return "", ErrInvalidName
	}
	base := strings.TrimRight(strings.TrimSuffix(token, ext)[:maxTokenBytes-len(ext)], "._")
	if base == "" {
		return "", ErrInvalidName
	}
	return base + ext, nil
}

// sanitizeChars applies every rule of Sanitize except the length cap.
func sanitizeChars(name string) (string, error) {
	if strings.ContainsFunc(name, unicode.IsControl) {
		return "", ErrInvalidName
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, name)
	if err != nil {
		return "", ErrInvalidName
	}

	ascii = strings.NewReplacer("/", " ", `\`, " ").Replace(ascii)
	token := disallowed.ReplaceAllString(strings.Join(strings.Fields(ascii), "_"), "")
	token = strings.Trim(token, "._")
	if token == "" {
		return "", ErrInvalidName
	}
	return token, nil
}
