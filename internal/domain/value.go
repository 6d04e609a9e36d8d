package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type ValueKind string

const (
	KindNull     ValueKind = "null"
	KindInt      ValueKind = "int"
	KindFloat    ValueKind = "float"
	KindCategory ValueKind = "category"
)

// Value is one encoded feature cell.
type Value struct {
	Kind     ValueKind
	Int      int64
	Float    float64
	Category string
}

func Int(v int64) Value        { return Value{Kind: KindInt, Int: v} }
func Float(v float64) Value    { return Value{Kind: KindFloat, Float: v} }
func Category(v string) Value  { return Value{Kind: KindCategory, Category: v} }
func Null() Value              { return Value{Kind: KindNull} }
func (v Value) IsNull() bool   { return v.Kind == KindNull || v.Kind == "" }
func (v Value) IsNumber() bool { return v.Kind == KindInt || v.Kind == KindFloat }

// Number returns the numeric value; categories and nulls are not numbers.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// String renders the value the way a model sees it in text form.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindCategory:
		return v.Category
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindFloat:
		return json.Marshal(v.Float)
	case KindCategory:
		return json.Marshal(v.Category)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes numbers without a fraction as ints, other numbers as
// floats and strings as categories.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Category(s)
		return nil
	}
	if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*v = Int(i)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid feature value %s", string(data))
	}
	*v = Float(f)
	return nil
}

// Feature is a named cell of a FeatureRecord.
type Feature struct {
	Column string `json:"column"`
	Value  Value  `json:"value"`
}

// FeatureRecord is the single ordered row handed to a classifier.
type FeatureRecord []Feature

func (r FeatureRecord) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Column
	}
	return cols
}

func (r FeatureRecord) Values() []Value {
	vals := make([]Value, len(r))
	for i, f := range r {
		vals[i] = f.Value
	}
	return vals
}

func (r FeatureRecord) Get(column string) (Value, bool) {
	for _, f := range r {
		if f.Column == column {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Equal reports whether both records have the same columns, order and values.
func (r FeatureRecord) Equal(other FeatureRecord) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// Map returns the record keyed by column, for JSON display.
func (r FeatureRecord) Map() map[string]Value {
	out := make(map[string]Value, len(r))
	for _, f := range r {
		out[f.Column] = f.Value
	}
	return out
}
