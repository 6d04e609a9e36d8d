package pipeline

import (
	"strconv"

	"healthbridge/internal/domain"
)

// EncodingTable maps each categorical field name to its label→value codes.
// Codes are either numeric (domain.Int) or the category label the model's own
// preprocessing expects (domain.Category).
type EncodingTable map[string]map[string]domain.Value

// Codes builds a numeric code table entry.
func Codes(pairs map[string]int64) map[string]domain.Value {
	out := make(map[string]domain.Value, len(pairs))
	for label, code := range pairs {
		out[label] = domain.Int(code)
	}
	return out
}

// Passthrough builds a table entry that forwards each label unchanged.
func Passthrough(labels ...string) map[string]domain.Value {
	out := make(map[string]domain.Value, len(labels))
	for _, label := range labels {
		out[label] = domain.Category(label)
	}
	return out
}

// Encode builds the feature record for a validated input. Columns follow the
// schema's field order.
func Encode(v Validated, table EncodingTable) (domain.FeatureRecord, error) {
	record := make(domain.FeatureRecord, 0, len(v.schema.Fields))
	for _, f := range v.schema.Fields {
		val, err := encodeField(v.input, f, table)
		if err != nil {
			return nil, err
		}
		record = append(record, domain.Feature{Column: f.Column, Value: val})
	}
	return record, nil
}

func encodeField(raw domain.RawInput, f domain.FieldSpec, table EncodingTable) (domain.Value, error) {
	value, ok := raw.Value(f.Name)
	if !ok {
		return domain.Null(), nil
	}
	switch f.Type {
	case domain.FieldEnum:
		codes, ok := table[f.Name]
		if !ok {
			return domain.Value{}, &UnknownCategoryError{Field: f.Name, Value: value}
		}
		code, ok := codes[value]
		if !ok {
			return domain.Value{}, &UnknownCategoryError{Field: f.Name, Value: value}
		}
		return code, nil
	case domain.FieldFloat:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return domain.Value{}, &EncodingError{Field: f.Name, Value: value, Cause: err}
		}
		if f.ZeroIsUnset && n == 0 {
			return domain.Null(), nil
		}
		return domain.Float(n), nil
	default:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return domain.Value{}, &EncodingError{Field: f.Name, Value: value, Cause: err}
		}
		if f.ZeroIsUnset && n == 0 {
			return domain.Null(), nil
		}
		return domain.Int(n), nil
	}
}
