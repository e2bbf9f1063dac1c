package pipeline

import "fmt"

// Kind labels where in a handler a failure happened. The label prefixes the
// failure text stored in the task record, so operators can tell a dead
// download link from a misbehaving model without reading stack traces.
type Kind string

const (
	KindFetch      Kind = "fetch_error"
	KindExtraction Kind = "extraction_error"
	KindInference  Kind = "inference_error"
	KindFormat     Kind = "format_error"
	KindSchema     Kind = "schema_error"
	KindStore      Kind = "store_error"
)

// Error is a handler failure carrying its kind.
type Error struct {
	kind Kind
	err  error
}

// Error renders as "<kind>: <detail>".
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.err)
}

// Kind returns the failure discriminator.
func (e *Error) Kind() Kind {
	return e.kind
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// NewFetchError marks a failure downloading the source document.
func NewFetchError(err error) *Error {
	return &Error{kind: KindFetch, err: err}
}

// NewExtractionError marks a failure getting text out of the document.
func NewExtractionError(err error) *Error {
	return &Error{kind: KindExtraction, err: err}
}

// NewInferenceError marks a failure calling a hosted model.
func NewInferenceError(err error) *Error {
	return &Error{kind: KindInference, err: err}
}

// NewFormatError marks model output the tool-call parser cannot understand.
func NewFormatError(err error) *Error {
	return &Error{kind: KindFormat, err: err}
}

// NewSchemaError marks extracted arguments that do not match the resume schema.
func NewSchemaError(err error) *Error {
	return &Error{kind: KindSchema, err: err}
}

// NewStoreError marks a failure writing to the vector store.
func NewStoreError(err error) *Error {
	return &Error{kind: KindStore, err: err}
}
