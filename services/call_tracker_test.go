package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallTrackerExpiresIdleCalls(t *testing.T) {
	tracker := NewCallTracker(time.Minute)
	now := time.Unix(1000, 0)
	tracker.now = func() time.Time { return now }

	idleCtx, idleCancel := context.WithCancel(context.Background())
	busyCtx, busyCancel := context.WithCancel(context.Background())
	defer idleCancel()
	defer busyCancel()

	tracker.RegisterCall("idle", "u-1", idleCancel)
	tracker.RegisterCall("busy", "u-2", busyCancel)
	assert.Equal(t, 2, tracker.ActiveCount())

	now = now.Add(50 * time.Second)
	tracker.Touch("busy")
	now = now.Add(20 * time.Second)
	tracker.checkTimeouts()

	assert.Error(t, idleCtx.Err())
	assert.NoError(t, busyCtx.Err())
	assert.Equal(t, 1, tracker.ActiveCount())
}

func TestCallTrackerEndCallTwice(t *testing.T) {
	tracker := NewCallTracker(0)
	ctx, cancel := context.WithCancel(context.Background())
	tracker.RegisterCall("c", "u", cancel)

	tracker.EndCall("c")
	tracker.EndCall("c")
	tracker.Touch("c")

	assert.Error(t, ctx.Err())
	assert.Equal(t, 0, tracker.ActiveCount())
}
