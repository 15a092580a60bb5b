package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the variants a context value can carry. The dispatch
// task runs in a different process than the caller, so template contexts
// travel as tagged unions of primitives, record references, and nested maps
// instead of live object graphs.
type Kind string

const (
	KindString  Kind = "string"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindBool    Kind = "bool"
	KindTime    Kind = "time"
	KindRef     Kind = "ref"
	KindRefList Kind = "ref_list"
	KindMap     Kind = "map"
)

// Ref stands in for a business record across the transport boundary. The
// display string is captured at enqueue time so rendering can degrade
// gracefully when the record is gone by the time the task runs.
type Ref struct {
	ID      string `json:"id"`
	Kind    string `json:"type"`
	Display string `json:"display"`
}

// Value is one tagged-union context value. Exactly the field matching Kind
// is meaningful; construct values through the typed constructors below.
type Value struct {
	Kind  Kind    `json:"kind"`
	Str   string  `json:"str,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Bool  bool    `json:"bool,omitempty"`
	Time  string  `json:"time,omitempty"`
	Ref   *Ref    `json:"ref,omitempty"`
	Refs  []Ref   `json:"refs,omitempty"`
	Map   Context `json:"map,omitempty"`
}

// Context maps template variable names to transport-safe values.
type Context map[string]Value

// timeDisplayFormat is how resolved time values appear in rendered bodies.
const timeDisplayFormat = "Jan 2, 2006 15:04 MST"

// String wraps a string value.
func String(v string) Value { return Value{Kind: KindString, Str: v} }

// Int wraps an integer value.
func Int(v int64) Value { return Value{Kind: KindInt, Int: v} }

// Float wraps a floating point value.
func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }

// Bool wraps a boolean value.
func Bool(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// Time wraps a timestamp, carried on the wire as RFC 3339.
func Time(v time.Time) Value { return Value{Kind: KindTime, Time: v.Format(time.RFC3339Nano)} }

// RecordRef wraps a reference to a business record.
func RecordRef(id, kind, display string) Value {
	return Value{Kind: KindRef, Ref: &Ref{ID: id, Kind: kind, Display: display}}
}

// RecordRefs wraps an ordered list of record references.
func RecordRefs(refs ...Ref) Value {
	return Value{Kind: KindRefList, Refs: refs}
}

// Nested wraps a nested context map.
func Nested(m Context) Value { return Value{Kind: KindMap, Map: m} }

// Serialize validates the context and encodes it for the task payload.
func Serialize(c Context) (json.RawMessage, error) {
	if err := validateContext(c); err != nil {
		return nil, err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode context: %w", err)
	}
	return data, nil
}

func validateContext(c Context) error {
	for name, v := range c {
		if err := validateValue(v); err != nil {
			return fmt.Errorf("%w: key %q: %v", ErrInvalidContext, name, err)
		}
	}
	return nil
}

func validateValue(v Value) error {
	switch v.Kind {
	case KindString, KindInt, KindFloat, KindBool, KindTime:
		return nil
	case KindRef:
		if v.Ref == nil {
			return fmt.Errorf("ref value without a reference")
		}
		return nil
	case KindRefList:
		return nil
	case KindMap:
		return validateContext(v.Map)
	default:
		return fmt.Errorf("unknown kind %q", v.Kind)
	}
}

// Deserialize decodes a serialized context and resolves record references
// into render-ready values. References resolve through the registry; an
// unknown kind or a record deleted since enqueue degrades to the captured
// display string rather than failing the render.
func Deserialize(ctx context.Context, raw json.RawMessage, reg *Registry) (map[string]any, error) {
	var c Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode context: %w", err)
	}
	return resolveContext(ctx, c, reg)
}

func resolveContext(ctx context.Context, c Context, reg *Registry) (map[string]any, error) {
	result := make(map[string]any, len(c))
	for name, v := range c {
		resolved, err := resolveValue(ctx, v, reg)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidContext, name, err)
		}
		result[name] = resolved
	}
	return result, nil
}

func resolveValue(ctx context.Context, v Value, reg *Registry) (any, error) {
	switch v.Kind {
	case KindString:
		return v.Str, nil
	case KindInt:
		return v.Int, nil
	case KindFloat:
		return v.Float, nil
	case KindBool:
		return v.Bool, nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, v.Time)
		if err != nil {
			// Tolerate a malformed timestamp instead of failing the render.
			return v.Time, nil
		}
		// Templates get a display string; html/template cannot branch on a
		// time.Time value.
		return t.Format(timeDisplayFormat), nil
	case KindRef:
		if v.Ref == nil {
			return nil, fmt.Errorf("ref value without a reference")
		}
		return resolveRef(ctx, *v.Ref, reg), nil
	case KindRefList:
		resolved := make([]any, len(v.Refs))
		for i, ref := range v.Refs {
			resolved[i] = resolveRef(ctx, ref, reg)
		}
		return resolved, nil
	case KindMap:
		return resolveContext(ctx, v.Map, reg)
	default:
		return nil, fmt.Errorf("unknown kind %q", v.Kind)
	}
}

func resolveRef(ctx context.Context, ref Ref, reg *Registry) any {
	if reg == nil {
		return ref.Display
	}
	record, err := reg.Resolve(ctx, ref.Kind, ref.ID)
	if err != nil {
		return ref.Display
	}
	return record
}
