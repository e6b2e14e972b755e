package ai

import (
	"math"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "plain", input: `{"a":1}`, expect: `{"a":1}`},
		{name: "fenced", input: "```json\n{\"a\":1}\n```", expect: `{"a":1}`},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", expect: `{"a":1}`},
		{name: "prose around", input: "Here you go:\n{\"a\": {\"b\": 2}}\nThanks!", expect: `{"a": {"b": 2}}`},
		{name: "no object", input: "sorry, I cannot help", expect: "sorry, I cannot help"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractJSON(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestCoerceFloat(t *testing.T) {
	t.Parallel()

	if got := CoerceFloat(float64(81)); got != 81 {
		t.Fatalf("expected 81, got %v", got)
	}
	if got := CoerceFloat(" 72.5 "); got != 72.5 {
		t.Fatalf("expected 72.5, got %v", got)
	}
	for _, v := range []any{nil, "", "high", true, []any{1}} {
		if got := CoerceFloat(v); !math.IsNaN(got) {
			t.Fatalf("expected NaN for %v, got %v", v, got)
		}
	}
}
