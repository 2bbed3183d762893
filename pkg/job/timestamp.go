package job

import (
	"encoding/json"
	"math"
	"time"
)

// Milliseconds since the Unix epoch.
type Timestamp int64

// A timestamp which has not happened yet.
// Serialized as JSON null.
const Never Timestamp = math.MaxInt64

// Source of the current time.
type Clock func() time.Time

func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Returns the current time of clock, or of the system clock if nil.
func Now(clock Clock) Timestamp {
	if clock == nil {
		return FromTime(time.Now())
	}
	return FromTime(clock())
}

func (t Timestamp) IsSet() bool {
	return t != Never
}

func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

// Returns the time elapsed between t and now.
func (t Timestamp) Until(now Timestamp) time.Duration {
	if !t.IsSet() || !now.IsSet() {
		return 0
	}
	return time.Duration(now-t) * time.Millisecond
}

func (t Timestamp) String() string {
	if !t.IsSet() {
		return "never"
	}
	return t.Time().UTC().Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(int64(t))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Never
		return nil
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*t = Timestamp(ms)
	return nil
}
