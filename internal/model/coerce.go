package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON value that may arrive as a string, number,
// boolean or null. The courier platform is not consistent about field
// types ("39,90" vs 39.9 vs null), so loose fields use this type.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string { return string(f) }

func (f FlexString) Empty() bool { return strings.TrimSpace(string(f)) == "" }

// FlexInt64 decodes an id that may arrive as a number or a numeric string.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// tolerate "42.0" style payloads
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			*f = 0
			return nil
		}
		n = int64(fv)
	}
	*f = FlexInt64(n)
	return nil
}

func (f FlexInt64) Int64() int64 { return int64(f) }

// ParseNumberBR converts values like "39,90", "R$ 1.234,56", "0.00" or 16.38
// into a float64. Anything unparseable is 0.
func ParseNumberBR(v string) float64 {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0
	}
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	s = stripThousandDots(b.String())
	s = strings.ReplaceAll(s, ",", ".")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}

// stripThousandDots removes a dot only when it is followed by exactly three
// digits and then a non-digit or the end of the string ("1.234,56" -> "1234,56",
// but "0.00" stays).
func stripThousandDots(s string) string {
	var b strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		if rs[i] != '.' {
			b.WriteRune(rs[i])
			continue
		}
		digits := 0
		for j := i + 1; j < len(rs) && rs[j] >= '0' && rs[j] <= '9'; j++ {
			digits++
		}
		if digits == 3 {
			continue
		}
		b.WriteRune(rs[i])
	}
	return b.String()
}

// CoerceBool accepts booleans, "sim"/"nao" style words and numeric strings;
// numbers are true when > 0 (the platform encodes the return leg as an
// additional amount in some responses).
func CoerceBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "", "null":
		return false
	case "1", "true", "t", "sim", "s", "yes", "y":
		return true
	case "0", "false", "f", "nao", "não", "no", "n":
		return false
	}
	return ParseNumberBR(s) > 0
}

// CoerceBoolStrict only accepts explicit affirmatives. Used for has_retorno,
// which must never be guessed from amounts once the backend has answered.
func CoerceBoolStrict(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "sim", "yes", "y":
		return true
	}
	return false
}
