package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultCallIdleLimit = 5 * time.Minute
	callCheckInterval    = 30 * time.Second
)

// CallTracker ends chunked calls that have seen no client activity for too long
type CallTracker struct {
	idleLimit   time.Duration
	activeCalls map[string]*ActiveCall
	mutex       sync.RWMutex
	now         func() time.Time
}

type ActiveCall struct {
	CallID       string
	UserID       string
	StartedAt    time.Time
	LastActivity time.Time
	CancelFunc   context.CancelFunc
}

func NewCallTracker(idleLimit time.Duration) *CallTracker {
	if idleLimit <= 0 {
		idleLimit = DefaultCallIdleLimit
	}
	return &CallTracker{
		idleLimit:   idleLimit,
		activeCalls: make(map[string]*ActiveCall),
		now:         time.Now,
	}
}

// Run checks for idle calls until ctx is done
func (t *CallTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(callCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkTimeouts()
		}
	}
}

// RegisterCall starts tracking a call; cancel is invoked when the call goes idle
func (t *CallTracker) RegisterCall(callID, userID string, cancel context.CancelFunc) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := t.now()
	t.activeCalls[callID] = &ActiveCall{
		CallID:       callID,
		UserID:       userID,
		StartedAt:    now,
		LastActivity: now,
		CancelFunc:   cancel,
	}
	slog.Info("Call registered for timeout tracking", "call_id", callID, "user_id", userID)
}

func (t *CallTracker) Touch(callID string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if call, exists := t.activeCalls[callID]; exists {
		call.LastActivity = t.now()
	}
}

// EndCall stops tracking a call. Safe to call more than once.
func (t *CallTracker) EndCall(callID string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if call, exists := t.activeCalls[callID]; exists {
		call.CancelFunc()
		delete(t.activeCalls, callID)
		slog.Info("Call removed from timeout tracking", "call_id", callID)
	}
}

func (t *CallTracker) ActiveCount() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return len(t.activeCalls)
}

func (t *CallTracker) checkTimeouts() {
	t.mutex.RLock()
	now := t.now()
	var idle []*ActiveCall
	for _, call := range t.activeCalls {
		if now.Sub(call.LastActivity) > t.idleLimit {
			idle = append(idle, call)
		}
	}
	t.mutex.RUnlock()

	for _, call := range idle {
		slog.Info("Call timed out",
			"call_id", call.CallID,
			"user_id", call.UserID,
			"inactive_duration", now.Sub(call.LastActivity))
		t.EndCall(call.CallID)
	}
}
