// Package flexjson содержит скалярные типы для "плавающих" полей Tourvisor.
//
// Один и тот же справочник отдаёт id то числом, то строкой ("47"),
// флаги — как 0/1, "0"/"1" или true/false. Типы ниже принимают все варианты.
package flexjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var null = []byte("null")

// unquote снимает кавычки со строкового JSON значения.
func unquote(data []byte) (string, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return string(data), false, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", true, err
	}
	return strings.TrimSpace(s), true, nil
}

// Int — целое число, которое может прийти строкой. Пустая строка и null дают 0.
type Int int

func (i *Int) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), null) {
		*i = 0
		return nil
	}
	s, _, err := unquote(data)
	if err != nil {
		return err
	}
	if s == "" {
		*i = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// 47.0 тоже встречается
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return fmt.Errorf("flexjson: %q is not an integer", s)
		}
		n = int64(f)
	}
	*i = Int(n)
	return nil
}

// Float — дробное число, которое может прийти строкой ("4.8").
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), null) {
		*f = 0
		return nil
	}
	s, _, err := unquote(data)
	if err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return fmt.Errorf("flexjson: %q is not a number", s)
	}
	*f = Float(v)
	return nil
}

// Bool — флаг в формате true/false, 0/1 или их строковых вариантах.
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), null) {
		*b = false
		return nil
	}
	s, _, err := unquote(data)
	if err != nil {
		return err
	}
	switch strings.ToLower(s) {
	case "", "0", "false", "no":
		*b = false
	case "1", "true", "yes":
		*b = true
	default:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("flexjson: %q is not a flag", s)
		}
		*b = n != 0
	}
	return nil
}
