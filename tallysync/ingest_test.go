package tallysync

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	got, ok := parseDate("2026-03-15")
	if !ok {
		t.Fatal("expected valid date")
	}
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseDate = %v, want %v", got, want)
	}

	for _, bad := range []string{"", "15/03/2026", "2026-13-01", "garbage"} {
		if _, ok := parseDate(bad); ok {
			t.Errorf("parseDate(%q) should fail", bad)
		}
	}
}

func TestParseAmountHandlesQuotedNumbers(t *testing.T) {
	// Older connector builds quote amounts; json.Number absorbs both forms.
	var payload struct {
		A json.Number `json:"a"`
		B json.Number `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 1234.5, "b": "567.89"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got := parseAmount(payload.A); got.String() != "1234.5" {
		t.Errorf("parseAmount(a) = %s", got)
	}
	if got := parseAmount(payload.B); got.String() != "567.89" {
		t.Errorf("parseAmount(b) = %s", got)
	}
	if got := parseAmount(json.Number("")); !got.IsZero() {
		t.Errorf("empty amount should parse as zero, got %s", got)
	}
}
