package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDateAcceptsTimestamps(t *testing.T) {
	for _, raw := range []string{"2024-03-05", " 2024-03-05 ", "2024-03-05T17:45:00Z", "2024-03-05T23:30:00.125-05:00"} {
		d, err := ParseDate(raw)
		if err != nil {
			t.Fatalf("ParseDate(%q) returned error: %v", raw, err)
		}
		if d != NewDate(2024, time.March, 5) {
			t.Fatalf("ParseDate(%q) = %v", raw, d)
		}
	}
}

func TestParseDateRejectsTrailingText(t *testing.T) {
	for _, raw := range []string{
		"05/03/2024",
		"2025-12-31garbage",
		"2025-12-3100",
		"2025-12-31T",
		"2025-12-31 10:00",
		"2025-02-30",
	} {
		if d, err := ParseDate(raw); err == nil {
			t.Fatalf("expected error for %q, got %v", raw, d)
		}
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan([]byte("2023-12-31")); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if d.String() != "2023-12-31" {
		t.Fatalf("unexpected date %s", d)
	}
	if err := d.Scan(time.Date(2020, time.February, 29, 23, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan time: %v", err)
	}
	if d != NewDate(2020, time.February, 29) {
		t.Fatalf("unexpected date %v", d)
	}
	if err := d.Scan("2023-12-31 00:00:00+00:00"); err != nil || d != NewDate(2023, time.December, 31) {
		t.Fatalf("scan driver timestamp: %v %v", d, err)
	}
	if err := d.Scan("2023-12-31junk"); err == nil {
		t.Fatalf("expected error scanning trailing text")
	}
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Fatalf("expected nil scan to reset date, got %v %v", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}
}

func TestDateJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		Due Date `json:"due"`
	}{Due: NewDate(2025, time.January, 2)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"due":"2025-01-02"}` {
		t.Fatalf("unexpected payload %s", payload)
	}

	var decoded struct {
		Due Date `json:"due"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !NewDate(2025, time.January, 1).Before(decoded.Due) {
		t.Fatalf("expected decoded date after new year's day, got %v", decoded.Due)
	}
}

func TestCoerceDate(t *testing.T) {
	want := NewDate(2024, time.July, 4)
	for _, value := range []any{"2024-07-04", want, &want, want.Time(), []byte("2024-07-04")} {
		got, ok, err := CoerceDate(value)
		if err != nil || !ok || got != want {
			t.Fatalf("CoerceDate(%v) = %v %v %v", value, got, ok, err)
		}
	}
	for _, value := range []any{nil, "", (*Date)(nil)} {
		if _, ok, err := CoerceDate(value); ok || err != nil {
			t.Fatalf("expected %v to be absent, got ok=%v err=%v", value, ok, err)
		}
	}
	if _, _, err := CoerceDate(3.5); err == nil {
		t.Fatalf("expected error for float")
	}
	if _, _, err := CoerceDate("tomorrow"); err == nil {
		t.Fatalf("expected error for unparseable string")
	}
}

func TestDiagnostics(t *testing.T) {
	var diag Diagnostics
	if !diag.Empty() {
		t.Fatalf("expected empty diagnostics")
	}
	diag.Skip(ClauseStageFilter, "bogus", SkipReasonUnknownField, nil)
	other := Diagnostics{}
	other.Skip(ClauseStageSort, "-nope", SkipReasonInvalidSort, map[string]any{"fallback": "-updated_at"})
	other.Skip(ClauseStageFilter, "attr", SkipReasonUnknownAttribute, nil)
	diag.Merge(other)

	if diag.Empty() || len(diag.Skipped) != 3 {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}
	fields := diag.Fields(ClauseStageFilter)
	if len(fields) != 2 || fields[0] != "bogus" || fields[1] != "attr" {
		t.Fatalf("unexpected filter fields %v", fields)
	}
	if got := diag.Fields(ClauseStageAnnotate); len(got) != 0 {
		t.Fatalf("expected no annotate fields, got %v", got)
	}
}
