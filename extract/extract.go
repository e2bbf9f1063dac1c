// Package extract pulls plain text out of PDF documents.
package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// Text returns the plain text content of a PDF document.
//
// The underlying parser panics on some malformed documents, so the panic is
// recovered and surfaced as a regular error.
func Text(data []byte) (text string, err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("malformed pdf: %v", e)
		}
	}()

	if len(data) == 0 {
		return "", errors.New("empty document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}

	plainText, err := reader.GetPlainText()
	if err != nil {
		return "", errors.Wrap(err, "extract text")
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plainText); err != nil {
		return "", errors.Wrap(err, "read text")
	}

	return buf.String(), nil
}
