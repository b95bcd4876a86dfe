package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ISODateLayout is the date layout handed to the compiler.
const ISODateLayout = "2006-01-02"

// Date is a calendar date carried as a native time value. It accepts both
// "YYYY-MM-DD" and RFC 3339 timestamps when decoded from JSON, because the
// edit forms send whichever their date picker produced.
type Date struct {
	time.Time
}

// NewDate returns a Date for the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ISO returns the UTC calendar day as "YYYY-MM-DD". Time-of-day is discarded.
func (d Date) ISO() string {
	return d.UTC().Format(ISODateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339))
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	str := string(data)
	if str == "null" || str == `""` {
		return nil
	}
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}

	for _, layout := range []string{time.RFC3339Nano, ISODateLayout} {
		if t, err := time.Parse(layout, str); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", str)
}
