package tracing_test

import (
	"testing"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchboxhq/matchbox/queue/tasks"
	"github.com/matchboxhq/matchbox/queue/tracing"
)

func TestSpanPropagatesThroughHeaders(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	signature, err := tasks.NewSignature("parse_resume", nil)
	require.NoError(t, err)

	producer := opentracing.StartSpan("SendTask", tracing.ProducerOption(), tracing.MatchboxTag)
	signature.Headers = tracing.HeadersWithSpan(signature.Headers, producer)
	producer.Finish()

	consumer := tracing.StartSpanFromHeaders(signature.Headers, signature.Name)
	tracing.AnnotateSpanWithSignatureInfo(consumer, signature)
	consumer.Finish()

	spans := tracer.FinishedSpans()
	require.Equal(t, 2, len(spans))

	assert.Equal(t, "SendTask", spans[0].OperationName)
	assert.Equal(t, "parse_resume", spans[1].OperationName)
	assert.Equal(t, spans[0].SpanContext.SpanID, spans[1].ParentID)
	assert.Equal(t, signature.UUID, spans[1].Tag("signature.uuid"))
	assert.Equal(t, "matchbox", spans[1].Tag("component"))
}

func TestStartSpanWithoutPropagatedContext(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	span := tracing.StartSpanFromHeaders(nil, "parse_resume")
	span.Finish()

	spans := tracer.FinishedSpans()
	require.Equal(t, 1, len(spans))
	assert.Equal(t, "parse_resume", spans[0].OperationName)
	assert.Equal(t, 0, spans[0].ParentID)
}

func TestHeadersWithSpanAllocatesHeaders(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	span := opentracing.StartSpan("SendTask")
	headers := tracing.HeadersWithSpan(nil, span)
	span.Finish()

	assert.NotNil(t, headers)
	assert.NotEmpty(t, headers)
}
