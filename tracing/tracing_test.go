package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	assert.NoError(t, InitWithExporter("superres-hpc", "test", exporter))

	ctx, span := StartSpan(context.Background(), "launch", "INTERNAL")
	span.WithAttributes(map[string]string{"profile": "train"})
	span.SetExitStatus(3)
	_, child := StartSpan(ctx, "submit", "CLIENT")
	EndSpan(child, errors.New("bsub: not found"))
	EndSpan(span, nil)

	spans := exporter.GetSpans()
	assert.Len(t, spans, 2)
	assert.Equal(t, "submit", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, "launch", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.NoError(t, Shutdown(context.Background()))
}

func TestNilSpan(t *testing.T) {
	var span *Span
	span.SetExitStatus(1)
	span.SetStatus(errors.New("x"))
	assert.Nil(t, span.WithAttributes(map[string]string{"a": "b"}))
	EndSpan(span, nil)
}
