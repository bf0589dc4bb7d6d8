package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxRouteTextLength bounds route name, origin and destination, in characters.
const MaxRouteTextLength = 100

type Route struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	ScheduledTime TimeOfDay `json:"scheduledTime"`
	VehicleID     string    `json:"vehicleId"`
	VehiclePlate  string    `json:"vehiclePlate,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TimeOfDay is a 24-hour wall clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var timeOfDayPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseTimeOfDay parses "HH:MM" (24-hour). Out-of-range values are rejected.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("invalid time format: %q", s)
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time format: %q", s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute
}

// TimeOfDayFromDuration converts an offset from midnight, dropping seconds.
func TimeOfDayFromDuration(d time.Duration) TimeOfDay {
	return TimeOfDay{
		Hour:   int(d/time.Hour) % 24,
		Minute: int(d%time.Hour) / int(time.Minute),
	}
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
