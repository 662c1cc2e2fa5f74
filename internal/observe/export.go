package observe

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// JSONLExporter writes each finished span as one JSON line.
type JSONLExporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLExporter returns an exporter writing to w.
func NewJSONLExporter(w io.Writer) *JSONLExporter {
	return &JSONLExporter{enc: json.NewEncoder(w)}
}

type spanRecord struct {
	Name         string         `json:"name"`
	TraceID      string         `json:"trace_id"`
	SpanID       string         `json:"span_id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Events       []eventRecord  `json:"events,omitempty"`
}

type eventRecord struct {
	Name       string         `json:"name"`
	Time       time.Time      `json:"time"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (e *JSONLExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range spans {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := spanRecord{
			Name:       s.Name(),
			TraceID:    s.SpanContext().TraceID().String(),
			SpanID:     s.SpanContext().SpanID().String(),
			Start:      s.StartTime().UTC(),
			End:        s.EndTime().UTC(),
			Status:     s.Status().Code.String(),
			Message:    s.Status().Description,
			Attributes: attrMap(s.Attributes()),
		}
		if p := s.Parent(); p.IsValid() {
			rec.ParentSpanID = p.SpanID().String()
		}
		for _, ev := range s.Events() {
			rec.Events = append(rec.Events, eventRecord{
				Name:       ev.Name,
				Time:       ev.Time.UTC(),
				Attributes: attrMap(ev.Attributes),
			})
		}
		if err := e.enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func (e *JSONLExporter) Shutdown(context.Context) error {
	return nil
}

func attrMap(kvs []attribute.KeyValue) map[string]any {
	if len(kvs) == 0 {
		return nil
	}
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

// NewJSONLTracerProvider returns a provider exporting every span to w as it
// ends. Callers shut it down when done.
func NewJSONLTracerProvider(w io.Writer) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewJSONLExporter(w)))
}
