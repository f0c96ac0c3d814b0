package transit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	msgpack "gopkg.in/vmihailenco/msgpack.v2"
)

const minutesPerDay = 24 * 60

// ErrClockParse is returned when a clock time is not formatted as "HH:MM"
var ErrClockParse = errors.New(`ClockParseError: should be a string formatted as "HH:MM"`)

// ClockTime is a wall-clock time of day, in minutes since local midnight.
// Values past the end of the day are allowed and represent times on the
// following day (e.g. the arrival of a trip that crosses midnight).
type ClockTime int

// ParseClockTime parses a "HH:MM" string
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrClockParse
	}
	var hour, minute int
	for i, c := range []byte(s) {
		if i == 2 {
			continue
		}
		if c < '0' || c > '9' {
			return 0, ErrClockParse
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, ErrClockParse
	}
	return ClockTime(hour*60 + minute), nil
}

// MustParseClockTime is like ParseClockTime but panics on malformed input
func MustParseClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(fmt.Sprintf("MustParseClockTime(%q): %s", s, err))
	}
	return c
}

// ClockTimeOf returns the time of day of t, in t's location, truncated to the minute
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// Add returns the clock time the given number of minutes later
func (c ClockTime) Add(minutes int) ClockTime {
	return c + ClockTime(minutes)
}

// Before reports whether c is earlier than other
func (c ClockTime) Before(other ClockTime) bool {
	return c < other
}

// On returns the instant corresponding to this clock time on the day of t
func (c ClockTime) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, int(c), 0, 0, t.Location())
}

func (c ClockTime) String() string {
	m := int(c) % minutesPerDay
	if m < 0 {
		m += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// MarshalJSON implements json.Marshaler
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrClockParse
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder
func (c ClockTime) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(c.String())
}

// DecodeMsgpack implements msgpack.CustomDecoder
func (c *ClockTime) DecodeMsgpack(dec *msgpack.Decoder) error {
	s, err := dec.DecodeString()
	if err != nil {
		return ErrClockParse
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
