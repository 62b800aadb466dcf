package record

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// IntValue is an optional whole-number reading. Entry forms submit strings,
// so both JSON numbers and numeric strings decode; blanks, nulls and
// non-numeric text decode as not recorded. Fractions are truncated.
type IntValue struct {
	Value int64
	Valid bool
}

func Int(v int64) IntValue {
	return IntValue{Value: v, Valid: true}
}

// Has reports whether a non-zero reading was recorded. Zero readings are
// treated as blank everywhere readings are counted or averaged.
func (v IntValue) Has() bool {
	return v.Valid && v.Value != 0
}

// Int returns the reading, or 0 when none was recorded.
func (v IntValue) Int() int64 {
	if !v.Valid {
		return 0
	}
	return v.Value
}

func (v IntValue) IsZero() bool {
	return !v.Valid
}

func (v IntValue) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, v.Value, 10), nil
}

func (v *IntValue) UnmarshalJSON(b []byte) error {
	f, ok := decodeNumber(b)
	if !ok {
		*v = IntValue{}
		return nil
	}
	*v = IntValue{Value: int64(f), Valid: true}
	return nil
}

// FloatValue is an optional decimal reading with the same decoding rules
// as IntValue.
type FloatValue struct {
	Value float64
	Valid bool
}

func Float(v float64) FloatValue {
	return FloatValue{Value: v, Valid: true}
}

func (v FloatValue) Has() bool {
	return v.Valid && v.Value != 0
}

func (v FloatValue) IsZero() bool {
	return !v.Valid
}

func (v FloatValue) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v.Value, 'f', -1, 64), nil
}

func (v *FloatValue) UnmarshalJSON(b []byte) error {
	f, ok := decodeNumber(b)
	if !ok {
		*v = FloatValue{}
		return nil
	}
	*v = FloatValue{Value: f, Valid: true}
	return nil
}

func decodeNumber(b []byte) (float64, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0, false
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Text is a string field that older rows may have stored as a number.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(b)
	}
	return nil
}
