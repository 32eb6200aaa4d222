package assistant

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// MinSourceChars is the least amount of non-space text worth sending to the model.
const MinSourceChars = 50

var ErrInsufficientText = errors.New("PDF contains insufficient text for question generation")

// ExtractPDFText returns the plain text of every page in document order.
func ExtractPDFText(data []byte) (text string, err error) {
	defer func() {
		// the parser panics on some malformed xref tables
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("read pdf: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func SufficientText(text string) bool {
	n := 0
	for _, r := range strings.TrimSpace(text) {
		if !unicode.IsSpace(r) {
			n++
			if n >= MinSourceChars {
				return true
			}
		}
	}
	return false
}
