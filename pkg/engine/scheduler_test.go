package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerScheduler_Runs(t *testing.T) {
	s := NewTimerScheduler()
	done := make(chan struct{})
	s.After(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task did not run")
	}
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerScheduler_Cancel(t *testing.T) {
	s := NewTimerScheduler()
	var ran atomic.Int32
	cancel := s.After(20*time.Millisecond, func() { ran.Add(1) })
	assert.Equal(t, 1, s.Pending())

	cancel()
	assert.Equal(t, 0, s.Pending())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())
}

func TestTimerScheduler_CancelAll(t *testing.T) {
	s := NewTimerScheduler()
	var ran atomic.Int32
	for range 5 {
		s.After(20*time.Millisecond, func() { ran.Add(1) })
	}
	s.CancelAll()
	assert.Equal(t, 0, s.Pending())

	s.After(time.Millisecond, func() { ran.Add(10) })
	assert.Eventually(t, func() bool { return ran.Load() == 10 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(10), ran.Load())
}

func TestManualScheduler(t *testing.T) {
	s := NewManualScheduler()
	var order []int
	s.After(time.Second, func() { order = append(order, 1) })
	cancel := s.After(time.Second, func() { order = append(order, 2) })
	s.After(time.Second, func() {
		order = append(order, 3)
		s.After(0, func() { order = append(order, 4) })
	})

	cancel()
	assert.Equal(t, 2, s.Flush())
	assert.Equal(t, []int{1, 3}, order)
	assert.Equal(t, 1, s.Pending())

	s.CancelAll()
	assert.Equal(t, 0, s.Flush())
}
