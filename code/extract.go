package code

import (
	"regexp"
	"strings"
)

// Tags delimiting the executable region of generated text.
const (
	OpenTag  = "<execute_python>"
	CloseTag = "</execute_python>"
)

var codeBlockPattern = regexp.MustCompile(`(?is)` + regexp.QuoteMeta(OpenTag) + `(.*?)` + regexp.QuoteMeta(CloseTag))

// ExtractCodeBlock returns the body of the first tagged region in text,
// trimmed. Text without a tagged region is returned trimmed as-is. A tag
// pair with an empty body yields "" and no error.
//
// Errors: empty or whitespace-only text returns ErrEmptyInput.
func ExtractCodeBlock(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	if m := codeBlockPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return strings.TrimSpace(text), nil
}

// HasCodeBlock reports whether text contains a tagged region.
func HasCodeBlock(text string) bool {
	return codeBlockPattern.MatchString(text)
}

// WrapCodeBlock wraps code in the execution tags.
func WrapCodeBlock(code string) string {
	return OpenTag + "\n" + strings.TrimSpace(code) + "\n" + CloseTag
}
