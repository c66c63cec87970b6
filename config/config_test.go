package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReminderWindows(t *testing.T) {
	windows, err := ParseReminderWindows("30m=push|Messaging, 24h=in_app|push")
	require.NoError(t, err)
	require.Len(t, windows, 2)

	assert.Equal(t, 24*time.Hour, windows[0].Offset, "widest window first")
	assert.Equal(t, []string{"in_app", "push"}, windows[0].Channels)
	assert.Equal(t, 30*time.Minute, windows[1].Offset)
	assert.Equal(t, []string{"push", "messaging"}, windows[1].Channels)
}

func TestParseReminderWindows_Empty(t *testing.T) {
	windows, err := ParseReminderWindows("")
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestParseReminderWindows_Rejects(t *testing.T) {
	for _, raw := range []string{
		"24h",
		"soon=push",
		"-1h=push",
		"1h=",
		"1h=push,60m=in_app",
	} {
		_, err := ParseReminderWindows(raw)
		assert.Error(t, err, raw)
	}
}
