package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"08:30", TimeOfDay{8, 30}, false},
		{"8:05", TimeOfDay{8, 5}, false},
		{" 23:59 ", TimeOfDay{23, 59}, false},
		{"00:00", TimeOfDay{0, 0}, false},
		{"25:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"8:5", TimeOfDay{}, true},
		{"08:30:00", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
		{"noon", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDay_DurationRoundTrip(t *testing.T) {
	tod := TimeOfDay{Hour: 17, Minute: 45}
	assert.Equal(t, 17*time.Hour+45*time.Minute, tod.Duration())
	assert.Equal(t, tod, TimeOfDayFromDuration(tod.Duration()+30*time.Second))
	assert.Equal(t, "17:45", tod.String())
}

func TestTimeOfDay_JSON(t *testing.T) {
	data, err := json.Marshal(Route{Name: "Centro", ScheduledTime: TimeOfDay{7, 5}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scheduledTime":"07:05"`)

	var r Route
	require.NoError(t, json.Unmarshal([]byte(`{"scheduledTime":"21:10"}`), &r))
	assert.Equal(t, TimeOfDay{21, 10}, r.ScheduledTime)

	assert.Error(t, json.Unmarshal([]byte(`{"scheduledTime":"24:00"}`), &r))
}

func TestAccountLockedError_MinutesRemaining(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      int
	}{
		{30 * time.Minute, 30},
		{29*time.Minute + time.Second, 30},
		{time.Second, 1},
		{0, 0},
		{-time.Minute, 0},
	}
	for _, tt := range tests {
		err := &AccountLockedError{Remaining: tt.remaining}
		assert.Equal(t, tt.want, err.MinutesRemaining(), tt.remaining.String())
	}

	err := &AccountLockedError{Remaining: 12 * time.Minute}
	assert.Equal(t, "account locked for 12 minutes", err.Error())
	assert.True(t, errors.Is(err, ErrAccountLocked))
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	assert.ErrorIs(t, &InvalidCredentialsError{AttemptsRemaining: 2}, ErrUnauthorized)
	assert.ErrorIs(t, &InvalidFileError{Reason: "file is empty"}, ErrInvalidFile)
	assert.ErrorIs(t, &BatchFailedError{}, ErrBatchFailed)
	assert.Equal(t, "invalid file: file is empty", (&InvalidFileError{Reason: "file is empty"}).Error())
}

func TestLoginAttempt_IsLockActive(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	var nilAttempt *LoginAttempt
	assert.False(t, nilAttempt.IsLockActive(now))
	assert.False(t, (&LoginAttempt{Locked: false, UnlockAt: &future}).IsLockActive(now))
	assert.False(t, (&LoginAttempt{Locked: true}).IsLockActive(now))
	assert.False(t, (&LoginAttempt{Locked: true, UnlockAt: &past}).IsLockActive(now))
	assert.False(t, (&LoginAttempt{Locked: true, UnlockAt: &now}).IsLockActive(now))
	assert.True(t, (&LoginAttempt{Locked: true, UnlockAt: &future}).IsLockActive(now))
}

func TestImportReport_Partial(t *testing.T) {
	created := []ImportedRoute{{Row: 1}}
	failed := []RowError{{Row: 2, Message: "invalid time format"}}

	assert.False(t, (&ImportReport{Created: created}).Partial())
	assert.False(t, (&ImportReport{Errors: failed}).Partial())
	assert.True(t, (&ImportReport{Created: created, Errors: failed}).Partial())
}
