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
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// KeyValue is an alias for the opentelemetry KeyValue attribute.
type KeyValue = attribute.KeyValue

// SpanStartOption is applied to a Span in StartSpan.
type SpanStartOption func(*spanOptions)

type spanOptions struct {
	options []trace.SpanStartOption
}

// WithAttributes sets initial attributes of a Span.
func WithAttributes(attrs ...KeyValue) SpanStartOption {
	return func(o *spanOptions) {
		o.options = append(o.options, trace.WithAttributes(attrs...))
	}
}

// WithAttributeMap sets initial attributes of a Span from a map.
func WithAttributeMap(attrMap map[string]interface{}) SpanStartOption {
	return func(o *spanOptions) {
		attrs := make([]KeyValue, 0, len(attrMap))
		for k, v := range attrMap {
			attrs = append(attrs, Attribute(k, v))
		}
		o.options = append(o.options, trace.WithAttributes(attrs...))
	}
}

// Span is a wrapped opentelemetry Span. The zero Span is a no-op.
type Span struct {
	otel trace.Span
}

// StartSpan starts a new Span which must be ended with Span.End. Without
// a running exporter the returned Span does nothing.
func StartSpan(ctx context.Context, name string, opts ...SpanStartOption) (context.Context, *Span) {
	t := trc.tracer()
	if t == nil {
		return ctx, &Span{}
	}

	o := &spanOptions{}
	for _, opt := range opts {
		opt(o)
	}

	ctx, span := t.Start(ctx, name, o.options...)
	return ctx, &Span{otel: span}
}

// SetStatus records err as the outcome of the Span.
func (s *Span) SetStatus(err error) {
	if s.isNil() {
		return
	}
	if err != nil {
		s.otel.RecordError(err)
		s.otel.SetStatus(codes.Error, err.Error())
		return
	}
	s.otel.SetStatus(codes.Ok, "")
}

// SetAttributes sets attributes of the Span.
func (s *Span) SetAttributes(attrs ...KeyValue) {
	if s.isNil() {
		return
	}
	s.otel.SetAttributes(attrs...)
}

// End the Span, recording err as its status.
func (s *Span) End(err error) {
	if s.isNil() {
		return
	}
	s.SetStatus(err)
	s.otel.End()
}

// IsRecording returns true if the Span records data.
func (s *Span) IsRecording() bool {
	return !s.isNil() && s.otel.IsRecording()
}

func (s *Span) isNil() bool {
	return s == nil || s.otel == nil
}

// Attribute returns an attribute with the given key and value.
func Attribute(key string, value interface{}) KeyValue {
	if value == nil {
		return attribute.String(key, "<nil>")
	}

	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case uint32:
		return attribute.Int64(key, int64(v))
	case uint64:
		return attribute.Int64(key, int64(v))
	case float64:
		return attribute.Float64(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	}

	return attribute.String(key, fmt.Sprintf("%v", value))
}
