package model

import (
	"encoding/json"
	"testing"
)

func TestParseNumberBR(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"39,90", 39.90},
		{"R$ 1.234,56", 1234.56},
		{"0.00", 0},
		{"0,00", 0},
		{"16.38", 16.38},
		{"1.234.567,89", 1234567.89},
		{"-5,50", -5.50},
		{"", 0},
		{"abc", 0},
		{"10", 10},
	}
	for _, tt := range tests {
		if got := ParseNumberBR(tt.in); got != tt.want {
			t.Errorf("ParseNumberBR(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCoerceBool(t *testing.T) {
	trues := []string{"1", "true", "sim", "S", "yes", "15,00", "0.5"}
	for _, v := range trues {
		if !CoerceBool(v) {
			t.Errorf("CoerceBool(%q) = false", v)
		}
	}
	falses := []string{"", "0", "false", "nao", "não", "no", "null", "0,00", "abc"}
	for _, v := range falses {
		if CoerceBool(v) {
			t.Errorf("CoerceBool(%q) = true", v)
		}
	}
}

func TestCoerceBoolStrict(t *testing.T) {
	if !CoerceBoolStrict("1") || !CoerceBoolStrict("Sim") || !CoerceBoolStrict("true") {
		t.Fatal("explicit affirmatives rejected")
	}
	// amounts never imply a return leg under strict rules
	for _, v := range []string{"15,00", "0.5", "2"} {
		if CoerceBoolStrict(v) {
			t.Errorf("CoerceBoolStrict(%q) = true", v)
		}
	}
}

func TestFlexStringShapes(t *testing.T) {
	var doc struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
		D FlexString `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a":"39,90","b":39.9,"c":null,"d":true}`), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.A.String() != "39,90" {
		t.Errorf("a = %q", doc.A)
	}
	if doc.B.String() != "39.9" {
		t.Errorf("b = %q", doc.B)
	}
	if !doc.C.Empty() {
		t.Errorf("c = %q, want empty", doc.C)
	}
	if doc.D.String() != "true" {
		t.Errorf("d = %q", doc.D)
	}
}

func TestFlexInt64Shapes(t *testing.T) {
	var doc struct {
		A FlexInt64 `json:"a"`
		B FlexInt64 `json:"b"`
		C FlexInt64 `json:"c"`
		D FlexInt64 `json:"d"`
	}
	if err := json.Unmarshal([]byte(`{"a":42,"b":"42","c":null,"d":42.0}`), &doc); err != nil {
		t.Fatal(err)
	}
	for name, v := range map[string]FlexInt64{"a": doc.A, "b": doc.B, "d": doc.D} {
		if v.Int64() != 42 {
			t.Errorf("%s = %d, want 42", name, v.Int64())
		}
	}
	if doc.C.Int64() != 0 {
		t.Errorf("c = %d, want 0", doc.C.Int64())
	}
}
