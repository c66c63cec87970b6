package service

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestDoctorLocker_SerializesSameDoctor(t *testing.T) {
	locker := NewDoctorLocker(quietLogger())
	defer locker.Stop()

	doctorID := uuid.New()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(doctorID)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestDoctorLocker_DifferentDoctorsDoNotBlock(t *testing.T) {
	locker := NewDoctorLocker(quietLogger())
	defer locker.Stop()

	unlockA := locker.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locker.Lock(uuid.New())
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another doctor blocked")
	}
}

func TestDoctorLocker_CleanupSkipsHeldMutex(t *testing.T) {
	locker := NewDoctorLocker(quietLogger())
	defer locker.Stop()

	held := uuid.New()
	unlock := locker.Lock(held)
	released := locker.Lock(uuid.New())
	released()

	cleaned := locker.cleanupStaleMutexes(time.Now().Add(time.Hour))
	assert.Equal(t, 1, cleaned)

	_, stillThere := locker.doctorMu.Load(held)
	assert.True(t, stillThere)
	unlock()
}

func TestDoctorLocker_StopIsIdempotent(t *testing.T) {
	locker := NewDoctorLocker(quietLogger())
	locker.Stop()
	locker.Stop()
}
