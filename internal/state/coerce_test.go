package state

import (
	"encoding/json"
	"math"
	"testing"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		in   any
		want any
	}{
		// int
		{"int from numeric string", KindInt, "5", int64(5)},
		{"int from leading numeric", KindInt, "12abc", int64(12)},
		{"int from non numeric", KindInt, "abc", int64(0)},
		{"int from padded string", KindInt, "  42", int64(42)},
		{"int from fraction string", KindInt, "7.9", int64(7)},
		{"int from exponent string", KindInt, "1e3", int64(1000)},
		{"int truncates float", KindInt, -3.7, int64(-3)},
		{"int from true", KindInt, true, int64(1)},
		{"int from nil", KindInt, nil, int64(0)},
		{"int from NaN", KindInt, math.NaN(), int64(0)},
		{"int from json number", KindInt, json.Number("9"), int64(9)},
		{"int from empty slice", KindInt, []any{}, int64(0)},

		// float
		{"float from string", KindFloat, "5.5", 5.5},
		{"float from int", KindFloat, int64(2), 2.0},
		{"float from signed prefix", KindFloat, "-.5kg", -0.5},
		{"float from non numeric", KindFloat, "x1", 0.0},
		{"float from false", KindFloat, false, 0.0},

		// bool
		{"bool from zero string", KindBool, "0", false},
		{"bool from empty string", KindBool, "", false},
		{"bool from string", KindBool, "false", true},
		{"bool from zero int", KindBool, int64(0), false},
		{"bool from zero float", KindBool, 0.0, false},
		{"bool from int", KindBool, int64(2), true},
		{"bool from nil", KindBool, nil, false},
		{"bool from empty map", KindBool, map[string]any{}, false},
		{"bool from slice", KindBool, []any{1}, true},

		// string
		{"string from true", KindString, true, "1"},
		{"string from false", KindString, false, ""},
		{"string from nil", KindString, nil, ""},
		{"string from int", KindString, int64(-4), "-4"},
		{"string from float", KindString, 5.5, "5.5"},
		{"string from whole float", KindString, 2.0, "2"},
		{"string from slice", KindString, []any{int64(1), "a"}, `[1,"a"]`},

		// any
		{"any passes string", KindAny, "5", "5"},
		{"any passes nil", KindAny, nil, nil},
		{"any passes float", KindAny, 1.25, 1.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(tt.kind, tt.in)
			if got != tt.want {
				t.Errorf("Coerce(%s, %#v) = %#v, want %#v", tt.kind, tt.in, got, tt.want)
			}
		})
	}
}

func TestCoerce_IntClamps(t *testing.T) {
	if got := Coerce(KindInt, "1e30"); got != int64(math.MaxInt64) {
		t.Errorf("Coerce(KindInt, 1e30) = %v, want MaxInt64", got)
	}
	if got := Coerce(KindInt, -1e30); got != int64(math.MinInt64) {
		t.Errorf("Coerce(KindInt, -1e30) = %v, want MinInt64", got)
	}
}

func TestNumericPrefix(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"abc":     "",
		"-":       "",
		".":       "",
		"12abc":   "12",
		"+3":      "+3",
		"1.5e2x":  "1.5e2",
		"2e":      "2",
		"2e+":     "2",
		"\t 7 8":  "7",
		".25":     ".25",
		"5.":      "5.",
		"-0.0001": "-0.0001",
	}

	for in, want := range tests {
		if got := numericPrefix(in); got != want {
			t.Errorf("numericPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKind_String(t *testing.T) {
	if KindFloat.String() != "float" {
		t.Errorf("KindFloat.String() = %q", KindFloat.String())
	}
	if Kind(99).String() != "Kind(99)" {
		t.Errorf("Kind(99).String() = %q", Kind(99).String())
	}
}
