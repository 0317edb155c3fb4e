// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Yates-Labs/storyteller/internal/apperr"
)

var ErrEmptyDocument = errors.New("document is empty")

const op = "extract pdf"

// ExtractText extracts text from a PDF, page by page. Pages that yield no
// text are skipped. Any parse failure is an extraction error.
func ExtractText(r io.ReaderAt, size int64) (text string, err error) {
	if size == 0 {
		return "", apperr.E(apperr.KindExtraction, op, ErrEmptyDocument)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = apperr.Errorf(apperr.KindExtraction, op, "error reading PDF file: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", apperr.Errorf(apperr.KindExtraction, op, "error reading PDF file: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", apperr.Errorf(apperr.KindExtraction, op, "page %d: %w", i, err)
		}
		if pageText == "" {
			continue
		}
		b.WriteString(pageText)
	}

	return b.String(), nil
}

// ExtractBytes extracts text from an in-memory PDF.
func ExtractBytes(data []byte) (string, error) {
	return ExtractText(bytes.NewReader(data), int64(len(data)))
}
