package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind selects the primitive a field accepts and the semantic check applied
// to non-empty values.
type Kind int

const (
	KindChar Kind = iota
	KindArguments
	KindEmail
	KindPhone
	KindDate
	KindBirthDay
	KindGender
	KindClientIDs
)

func (k Kind) String() string {
	switch k {
	case KindChar:
		return "char"
	case KindArguments:
		return "arguments"
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	case KindDate:
		return "date"
	case KindBirthDay:
		return "birthday"
	case KindGender:
		return "gender"
	case KindClientIDs:
		return "client_ids"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// DateLayout is the wire format of Date and BirthDay fields (DD.MM.YYYY).
const DateLayout = "02.01.2006"

// MaxAge bounds how far in the past a BirthDay may lie.
const MaxAge = 70

const (
	GenderUnknown = 0
	GenderMale    = 1
	GenderFemale  = 2
)

const phoneLength = 11

// Field describes one named field of a Schema. Fields are plain values;
// build them with the kind constructors below.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Nullable bool
}

// FieldOption toggles a Field flag at construction time.
type FieldOption func(*Field)

// Required marks the key as mandatory in the input document.
func Required(f *Field) { f.Required = true }

// Nullable lets a present key carry an empty value.
func Nullable(f *Field) { f.Nullable = true }

func newField(name string, kind Kind, opts []FieldOption) Field {
	f := Field{Name: name, Kind: kind}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func Char(name string, opts ...FieldOption) Field { return newField(name, KindChar, opts) }

func Arguments(name string, opts ...FieldOption) Field {
	return newField(name, KindArguments, opts)
}

func Email(name string, opts ...FieldOption) Field { return newField(name, KindEmail, opts) }

func Phone(name string, opts ...FieldOption) Field { return newField(name, KindPhone, opts) }

func Date(name string, opts ...FieldOption) Field { return newField(name, KindDate, opts) }

func BirthDay(name string, opts ...FieldOption) Field {
	return newField(name, KindBirthDay, opts)
}

func Gender(name string, opts ...FieldOption) Field { return newField(name, KindGender, opts) }

func ClientIDs(name string, opts ...FieldOption) Field {
	return newField(name, KindClientIDs, opts)
}

// Clean normalizes raw and validates the result. A nil value with a nil
// error means the field was present but empty and the field is nullable.
//
// Value types by kind: Char, Email and Phone give string; Arguments gives
// Document; Date and BirthDay give time.Time; Gender gives int; ClientIDs
// gives []int64.
func (f Field) Clean(raw any, now time.Time) (any, error) {
	if isEmpty(raw) {
		if !f.Nullable {
			return nil, errNotNullable(f.Name)
		}
		return nil, nil
	}

	switch f.Kind {
	case KindChar:
		s, ok := raw.(string)
		if !ok {
			return nil, errWrongType(f.Name)
		}
		return s, nil

	case KindArguments:
		doc, ok := asDocument(raw)
		if !ok {
			return nil, errWrongType(f.Name)
		}
		return doc, nil

	case KindEmail:
		s, ok := raw.(string)
		if !ok {
			return nil, errWrongType(f.Name)
		}
		if !strings.Contains(s, "@") {
			return nil, errFormat(f.Name, `Email must have a "@"`)
		}
		return s, nil

	case KindPhone:
		s, err := f.cleanPhone(raw)
		if err != nil {
			return nil, err
		}
		return s, nil

	case KindDate:
		d, err := f.cleanDate(raw)
		if err != nil {
			return nil, err
		}
		return d, nil

	case KindBirthDay:
		d, err := f.cleanDate(raw)
		if err != nil {
			return nil, err
		}
		local := now.In(time.Local)
		oldest := time.Date(local.Year()-MaxAge, local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
		if d.Before(oldest) {
			return nil, errFormat(f.Name, fmt.Sprintf("Day of birth must be within %d years", MaxAge))
		}
		return d, nil

	case KindGender:
		n, ok := asInt(raw)
		if !ok {
			return nil, errWrongType(f.Name)
		}
		if n != GenderUnknown && n != GenderMale && n != GenderFemale {
			return nil, errFormat(f.Name, "Gender must be in [0, 1, 2]")
		}
		return int(n), nil

	case KindClientIDs:
		items, ok := raw.([]any)
		if !ok {
			return nil, errWrongType(f.Name)
		}
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			n, ok := asInt(item)
			if !ok {
				return nil, errFormat(f.Name, "All elements must be integers")
			}
			ids = append(ids, n)
		}
		return ids, nil
	}

	return nil, fmt.Errorf("schema: field %q has unsupported kind %s", f.Name, f.Kind)
}

func (f Field) cleanPhone(raw any) (string, error) {
	var s string
	if n, ok := asInt(raw); ok {
		s = strconv.FormatInt(n, 10)
	} else if str, ok := raw.(string); ok {
		s = str
	} else {
		return "", errWrongType(f.Name)
	}
	if len(s) != phoneLength {
		return "", errFormat(f.Name, fmt.Sprintf("Phone must be %d digits", phoneLength))
	}
	if s[0] != '7' {
		return "", errFormat(f.Name, `Phone must have leading "7"`)
	}
	return s, nil
}

func (f Field) cleanDate(raw any) (time.Time, error) {
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, errWrongType(f.Name)
	}
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, errWrongType(f.Name)
	}
	return d, nil
}

// isEmpty mirrors the falsy values of a JSON document: null, "", [] and {}.
// Numbers are never empty so that gender 0 stays a valid value.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case Document:
		return len(t) == 0
	default:
		return false
	}
}

// asInt accepts JSON integers decoded with UseNumber as well as Go integer
// values. Floats are rejected, even integral ones.
func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	default:
		return 0, false
	}
}

func asDocument(v any) (Document, bool) {
	switch t := v.(type) {
	case Document:
		return t, true
	case map[string]any:
		return Document(t), true
	default:
		return nil, false
	}
}
