package notify

import (
	"context"
	"fmt"
)

// RecordSource fetches a live business record by its stable ID. Sources are
// registered per record kind and consulted when a serialized context is
// resolved on the worker side.
type RecordSource interface {
	GetRecord(ctx context.Context, id string) (any, error)
}

// RecordSourceFunc adapts a function to the RecordSource interface.
type RecordSourceFunc func(ctx context.Context, id string) (any, error)

func (f RecordSourceFunc) GetRecord(ctx context.Context, id string) (any, error) {
	return f(ctx, id)
}

// Registry is the statically constructed lookup table shared by the enqueue
// and execution sides: record kind to source, and notification type to
// default template name. Build it once at startup and pass it by reference;
// it is not safe for concurrent mutation after that.
type Registry struct {
	sources   map[string]RecordSource
	templates map[Type]string
	fallback  string
}

// NewRegistry creates a registry with the built-in template mapping.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]RecordSource),
		templates: map[Type]string{
			TypeVerification:   "verification",
			TypePasswordReset:  "password_reset",
			TypeSampleReceived: "sample_received",
			TypeSampleRejected: "sample_rejected",
			TypeReportReady:    "report_ready",
			TypeWorkOrder:      "work_order",
		},
		fallback: "generic",
	}
}

// RegisterSource maps a record kind to its source. The last registration
// for a kind wins.
func (r *Registry) RegisterSource(kind string, src RecordSource) *Registry {
	r.sources[kind] = src
	return r
}

// RegisterTemplate overrides the default template for a notification type.
func (r *Registry) RegisterTemplate(t Type, templateName string) *Registry {
	r.templates[t] = templateName
	return r
}

// Resolve fetches the live record for a reference. Callers fall back to the
// captured display string on any error.
func (r *Registry) Resolve(ctx context.Context, kind, id string) (any, error) {
	src, ok := r.sources[kind]
	if !ok {
		return nil, fmt.Errorf("no record source for kind %q", kind)
	}
	return src.GetRecord(ctx, id)
}

// TemplateFor maps a notification type to its default template name. An
// unknown type gets the generic fallback.
func (r *Registry) TemplateFor(t Type) string {
	if name, ok := r.templates[t]; ok {
		return name
	}
	return r.fallback
}

// FallbackTemplate returns the generic template name.
func (r *Registry) FallbackTemplate() string {
	return r.fallback
}
