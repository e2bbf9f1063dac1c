package pipeline_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matchboxhq/matchbox/pipeline"
)

func TestErrorRendersKindPrefix(t *testing.T) {
	t.Parallel()

	cause := errors.New("GET https://resumes.example.com/1.pdf returned 404")
	err := pipeline.NewFetchError(cause)

	assert.Equal(t, "fetch_error: GET https://resumes.example.com/1.pdf returned 404", err.Error())
	assert.Equal(t, pipeline.KindFetch, err.Kind())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	cases := []struct {
		err  *pipeline.Error
		kind pipeline.Kind
	}{
		{pipeline.NewFetchError(cause), pipeline.KindFetch},
		{pipeline.NewExtractionError(cause), pipeline.KindExtraction},
		{pipeline.NewInferenceError(cause), pipeline.KindInference},
		{pipeline.NewFormatError(cause), pipeline.KindFormat},
		{pipeline.NewSchemaError(cause), pipeline.KindSchema},
		{pipeline.NewStoreError(cause), pipeline.KindStore},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, tc.err.Kind())
		assert.Contains(t, tc.err.Error(), string(tc.kind)+": ")
	}
}
