package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// Interval for cleaning up stale mutexes
	mutexCleanupInterval = 10 * time.Minute

	// How long a mutex must be unused before cleanup
	mutexStaleThreshold = 10 * time.Minute
)

// DoctorLocker serializes booking-affecting operations per doctor inside one process.
// The database advisory lock taken in the same critical section extends this across
// instances.
//
// Lock Ordering (to prevent deadlocks):
// 1. Acquire doctor mutex FIRST
// 2. Then open the DB transaction and take the advisory lock
type DoctorLocker struct {
	log *logrus.Logger

	doctorMu sync.Map // map[uuid.UUID]*mutexWithTimestamp

	// Graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// mutexWithTimestamp tracks mutex usage for cleanup
type mutexWithTimestamp struct {
	mu       sync.Mutex
	lastUsed atomic.Int64 // Unix timestamp
}

// NewDoctorLocker creates a DoctorLocker and starts the background cleanup goroutine.
// Call Stop() during graceful shutdown.
func NewDoctorLocker(log *logrus.Logger) *DoctorLocker {
	l := &DoctorLocker{
		log:      log,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupMutexMapLoop()

	return l
}

// Stop gracefully shuts down the cleanup loop.
// Safe to call multiple times.
func (l *DoctorLocker) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.stopChan)
		l.wg.Wait()
		l.log.Info("DoctorLocker stopped")
	}
}

// Lock blocks until the doctor's mutex is held and returns its unlock func.
func (l *DoctorLocker) Lock(doctorID uuid.UUID) func() {
	var mt *mutexWithTimestamp
	for {
		mt = l.getDoctorMutex(doctorID)
		mt.mu.Lock()
		// cleanup may have dropped this mutex between load and lock
		if current, ok := l.doctorMu.Load(doctorID); ok && current == mt {
			break
		}
		mt.mu.Unlock()
	}
	mt.lastUsed.Store(time.Now().Unix())
	return func() {
		mt.lastUsed.Store(time.Now().Unix())
		mt.mu.Unlock()
	}
}

func (l *DoctorLocker) getDoctorMutex(doctorID uuid.UUID) *mutexWithTimestamp {
	mt, _ := l.doctorMu.LoadOrStore(doctorID, &mutexWithTimestamp{})
	result := mt.(*mutexWithTimestamp)
	result.lastUsed.Store(time.Now().Unix())
	return result
}

func (l *DoctorLocker) cleanupMutexMapLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(mutexCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			l.log.Debug("Mutex cleanup goroutine stopping")
			return
		case <-ticker.C:
			l.cleanupStaleMutexes(time.Now().Add(-mutexStaleThreshold))
		}
	}
}

// cleanupStaleMutexes removes mutexes unused since cutoff. TryLock skips the ones
// in use, and lastUsed is checked while holding the lock.
func (l *DoctorLocker) cleanupStaleMutexes(cutoff time.Time) int {
	cutoffUnix := cutoff.Unix()
	var cleaned int

	l.doctorMu.Range(func(key, value any) bool {
		mt, ok := value.(*mutexWithTimestamp)
		if !ok {
			return true
		}

		if mt.mu.TryLock() {
			if mt.lastUsed.Load() < cutoffUnix {
				l.doctorMu.Delete(key)
				cleaned++
			}
			mt.mu.Unlock()
		}
		return true
	})

	if cleaned > 0 {
		l.log.Debugf("Cleaned up %d stale doctor mutexes", cleaned)
	}
	return cleaned
}
