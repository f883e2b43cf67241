package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date layout used on the wire and in
// storage.
const DateLayout = "2006-01-02"

// Date is a calendar date without time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO-8601 calendar date. RFC 3339 timestamps are
// accepted and reduced to their date part; any other text is an error.
func ParseDate(raw string) (Date, error) {
	return parseDateLayouts(strings.TrimSpace(raw), DateLayout, time.RFC3339)
}

// storedDateLayouts adds the timestamp renderings drivers return for DATE
// columns read without their declared type.
var storedDateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

func parseDateLayouts(raw string, layouts ...string) (Date, error) {
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, raw); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("parse date %q: %w", raw, err)
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is before other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// String returns the ISO-8601 representation.
func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE columns across drivers.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		parsed, err := parseDateLayouts(strings.TrimSpace(v), storedDateLayouts...)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("types: cannot scan %T into Date", src)
	}
}

// MarshalJSON encodes the date as an ISO-8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an ISO-8601 string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// CoerceDate converts an untyped filter or annotation value into a Date.
// Strings are parsed as ISO-8601; typed dates and times pass through.
func CoerceDate(value any) (Date, bool, error) {
	switch v := value.(type) {
	case nil:
		return Date{}, false, nil
	case Date:
		return v, true, nil
	case *Date:
		if v == nil {
			return Date{}, false, nil
		}
		return *v, true, nil
	case time.Time:
		return DateOf(v), true, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return Date{}, false, nil
		}
		parsed, err := ParseDate(v)
		if err != nil {
			return Date{}, false, err
		}
		return parsed, true, nil
	case []byte:
		return CoerceDate(string(v))
	default:
		return Date{}, false, fmt.Errorf("types: unsupported date value %T", value)
	}
}
