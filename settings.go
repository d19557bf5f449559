package pluggable

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/golobby/cast"
)

// SettingKind enumerates the value kinds the settings union admits.
type SettingKind int

const (
	SettingNil SettingKind = iota
	SettingBool
	SettingInt
	SettingFloat
	SettingString
	SettingList
	SettingMap
)

// SettingValue is a tagged value constrained to a serializable
// scalar/list/map union. Arbitrary host types are rejected at construction
// so settings stay representable in any manifest or event payload.
type SettingValue struct {
	value any
}

// Settings is an opaque settings map keyed by setting name.
type Settings map[string]SettingValue

// NewSettingValue converts v into the union, recursing into slices and
// string-keyed maps. Integer types narrow to int64, floats to float64.
func NewSettingValue(v any) (SettingValue, error) {
	switch val := v.(type) {
	case nil:
		return SettingValue{}, nil
	case SettingValue:
		return val, nil
	case bool, string:
		return SettingValue{value: val}, nil
	case int:
		return SettingValue{value: int64(val)}, nil
	case int32:
		return SettingValue{value: int64(val)}, nil
	case int64:
		return SettingValue{value: val}, nil
	case uint:
		return SettingValue{value: int64(val)}, nil
	case uint64:
		return SettingValue{value: int64(val)}, nil
	case float32:
		return SettingValue{value: float64(val)}, nil
	case float64:
		return SettingValue{value: val}, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		list := make([]SettingValue, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := NewSettingValue(rv.Index(i).Interface())
			if err != nil {
				return SettingValue{}, err
			}
			list[i] = elem
		}
		return SettingValue{value: list}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return SettingValue{}, fmt.Errorf("%w: map keyed by %s", ErrSettingValueUnsupported, rv.Type().Key())
		}
		m := make(map[string]SettingValue, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			elem, err := NewSettingValue(iter.Value().Interface())
			if err != nil {
				return SettingValue{}, err
			}
			m[iter.Key().String()] = elem
		}
		return SettingValue{value: m}, nil
	default:
		return SettingValue{}, fmt.Errorf("%w: %T", ErrSettingValueUnsupported, v)
	}
}

// MustSettingValue is NewSettingValue for literals in tests and examples.
func MustSettingValue(v any) SettingValue {
	sv, err := NewSettingValue(v)
	if err != nil {
		panic(err)
	}
	return sv
}

// NewSettings converts a raw string-keyed map into a Settings map.
func NewSettings(raw map[string]any) (Settings, error) {
	s := make(Settings, len(raw))
	for key, v := range raw {
		sv, err := NewSettingValue(v)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", key, err)
		}
		s[key] = sv
	}
	return s, nil
}

// Kind reports which member of the union the value holds.
func (s SettingValue) Kind() SettingKind {
	switch s.value.(type) {
	case nil:
		return SettingNil
	case bool:
		return SettingBool
	case int64:
		return SettingInt
	case float64:
		return SettingFloat
	case string:
		return SettingString
	case []SettingValue:
		return SettingList
	default:
		return SettingMap
	}
}

// IsNil reports whether the value is the nil member.
func (s SettingValue) IsNil() bool { return s.value == nil }

// Bool returns the boolean member, coercing from string ("true"/"false").
func (s SettingValue) Bool() (bool, error) {
	if b, ok := s.value.(bool); ok {
		return b, nil
	}
	v, err := s.coerce(reflect.TypeOf(false))
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Int returns the integer member, coercing from float and numeric strings.
func (s SettingValue) Int() (int64, error) {
	switch v := s.value.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	}
	v, err := s.coerce(reflect.TypeOf(int64(0)))
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Float returns the float member, coercing from int and numeric strings.
func (s SettingValue) Float() (float64, error) {
	switch v := s.value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	}
	v, err := s.coerce(reflect.TypeOf(float64(0)))
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// String returns the string member; non-strings are not coerced.
func (s SettingValue) String() (string, error) {
	if str, ok := s.value.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("%w: want string, have %T", ErrSettingWrongKind, s.value)
}

// List returns the list member.
func (s SettingValue) List() ([]SettingValue, error) {
	if l, ok := s.value.([]SettingValue); ok {
		return l, nil
	}
	return nil, fmt.Errorf("%w: want list, have %T", ErrSettingWrongKind, s.value)
}

// Map returns the map member.
func (s SettingValue) Map() (map[string]SettingValue, error) {
	if m, ok := s.value.(map[string]SettingValue); ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: want map, have %T", ErrSettingWrongKind, s.value)
}

// coerce converts a string member to the requested scalar type.
func (s SettingValue) coerce(t reflect.Type) (any, error) {
	str, ok := s.value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: want %s, have %T", ErrSettingWrongKind, t, s.value)
	}
	converted, err := cast.FromType(str, t)
	if err != nil {
		return nil, fmt.Errorf("cannot coerce setting %q to %s: %w", str, t, err)
	}
	return converted, nil
}

// MarshalJSON serializes the underlying union value directly.
func (s SettingValue) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(s.value)
	if err != nil {
		return nil, fmt.Errorf("marshal setting value: %w", err)
	}
	return b, nil
}

// UnmarshalJSON accepts any JSON value and funnels it through the union.
func (s *SettingValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal setting value: %w", err)
	}
	sv, err := NewSettingValue(raw)
	if err != nil {
		return err
	}
	*s = sv
	return nil
}
