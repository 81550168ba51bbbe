// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withSpanExporter(e sdktrace.SpanExporter) Option {
	return func(t *tracing) error {
		t.custom = e
		return nil
	}
}

func TestDisabled(t *testing.T) {
	require.NoError(t, Start(WithCollectorEndpoint(""), WithSamplingRatio(1.0)))
	require.False(t, Enabled())

	ctx := context.Background()
	sctx, span := StartSpan(ctx, "noop")
	require.Equal(t, ctx, sctx)
	require.False(t, span.IsRecording())
	span.SetAttributes(Attribute("key", "value"))
	span.End(errors.New("ignored"))

	require.NoError(t, Start(WithCollectorEndpoint("otlp-http"), WithSamplingRatio(0)))
	require.False(t, Enabled())
}

func TestInvalidOptions(t *testing.T) {
	require.Error(t, Start(WithSamplingRatio(1.5)))
	require.Error(t, Start(WithSamplingRatio(-0.1)))

	_, err := newExporter("bogus://localhost:1234")
	require.Error(t, err)
	_, err = newExporter("otlp-http://localhost:4318")
	require.NoError(t, err)
}

func TestSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	require.NoError(t, Start(
		withSpanExporter(exp),
		WithServiceName("tracing-test"),
		WithSamplingRatio(1.0),
	))
	defer func() {
		Stop()
		trc.custom = nil
	}()
	require.True(t, Enabled())

	ctx, parent := StartSpan(context.Background(), "parent",
		WithAttributes(Attribute("vm", "termina")))
	_, child := StartSpan(ctx, "child", WithAttributeMap(map[string]interface{}{
		"size": uint64(1024),
	}))
	require.True(t, child.IsRecording())
	child.End(errors.New("failed"))
	parent.End(nil)

	fctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trc.provider.ForceFlush(fctx))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)

	require.Equal(t, "child", spans[0].Name)
	require.Equal(t, codes.Error, spans[0].Status.Code)
	require.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
	require.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())

	require.Equal(t, "parent", spans[1].Name)
	require.Equal(t, codes.Ok, spans[1].Status.Code)
	require.Contains(t, spans[1].Attributes, Attribute("vm", "termina"))
}

func TestAttribute(t *testing.T) {
	for _, tc := range []*struct {
		value interface{}
		want  string
	}{
		{nil, "<nil>"},
		{"text", "text"},
		{true, "true"},
		{42, "42"},
		{uint32(7), "7"},
		{2.5, "2.5"},
		{time.Second, "1s"},
		{struct{ A int }{1}, "{1}"},
	} {
		require.Equal(t, tc.want, Attribute("k", tc.value).Value.Emit())
	}
}
