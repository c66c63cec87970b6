package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AfterFuncFiresOnAdvance(t *testing.T) {
	f := NewFake(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))
	fired := 0
	f.AfterFunc(time.Minute, func() { fired++ })

	f.Advance(59 * time.Second)
	assert.Equal(t, 0, fired)
	f.Advance(time.Second)
	assert.Equal(t, 1, fired)
	f.Advance(time.Hour)
	assert.Equal(t, 1, fired, "fires once")
}

func TestFake_StoppedTimerNeverFires(t *testing.T) {
	f := NewFake(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC))
	fired := false
	timer := f.AfterFunc(time.Minute, func() { fired = true })

	assert.True(t, timer.Stop())
	f.Set(f.Now().Add(2 * time.Minute))
	assert.False(t, fired)
	assert.False(t, timer.Stop())
}
