// Package record implements the tagged-variant column value and the
// length-prefixed JSON codec used to store rows in a data file page.
package record

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/intellect4all/reldb/dberrors"
)

// Kind tags which arm of Value is populated.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindDate
	KindText
	KindFloatVec
)

// Value is the runtime representation of a column value. Exactly one field
// is meaningful, selected by Kind; the rest are zero. This replaces the
// dynamic typing of the original implementation with a single static
// variant, per the engine's design notes.
type Value struct {
	Kind     Kind
	Int      int64
	Float    float64
	DateISO  string
	Text     string
	FloatVec []float64
}

func Int(v int64) Value        { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value    { return Value{Kind: KindFloat, Float: v} }
func Date(v string) Value      { return Value{Kind: KindDate, DateISO: v} }
func Text(v string) Value      { return Value{Kind: KindText, Text: v} }
func FloatVec(v []float64) Value { return Value{Kind: KindFloatVec, FloatVec: v} }

// MarshalJSON writes the JSON-on-disk shape: a plain scalar/array, no kind
// tag. The caller supplies the expected Kind (from the owning schema
// column) on decode.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindDate, KindText:
		s := v.DateISO
		if v.Kind == KindText {
			s = v.Text
		}
		return json.Marshal(s)
	case KindFloatVec:
		return json.Marshal(v.FloatVec)
	default:
		return nil, fmt.Errorf("record: unknown value kind %d", v.Kind)
	}
}

// DecodeAs parses a wire-form JSON scalar/array into a Value of the given
// Kind. The caller (the record Codec, driven by schema.Column.Type) always
// knows the expected kind ahead of time.
func DecodeAs(kind Kind, raw []byte) (Value, error) {
	switch kind {
	case KindInt:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return Value{}, dberrors.Validation("value is not an integer").WithDetail("raw", string(raw))
		}
		return Int(i), nil
	case KindFloat:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, dberrors.Validation("value is not a float").WithDetail("raw", string(raw))
		}
		return Float(f), nil
	case KindDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, dberrors.Validation("value is not a date string").WithDetail("raw", string(raw))
		}
		return Date(s), nil
	case KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, dberrors.Validation("value is not a string").WithDetail("raw", string(raw))
		}
		return Text(s), nil
	case KindFloatVec:
		var v []float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return Value{}, dberrors.Validation("value is not a float array").WithDetail("raw", string(raw))
		}
		return FloatVec(v), nil
	default:
		return Value{}, fmt.Errorf("record: unknown value kind %d", kind)
	}
}

// Values is an ordered row: one Value per schema column, keyed by column
// name. Encoding preserves the schema's declared column order, not Go map
// iteration order.
type Values map[string]Value
