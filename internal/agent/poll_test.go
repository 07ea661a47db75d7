package agent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPollSucceedsOnceConditionHolds(t *testing.T) {
	calls := 0
	err := poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if calls != 3 {
		t.Errorf("condition checked %d times, want 3", calls)
	}
}

func TestPollTimesOut(t *testing.T) {
	err := poll(context.Background(), time.Millisecond, 10*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, errPollTimeout) {
		t.Errorf("poll: err = %v, want errPollTimeout", err)
	}
}

func TestPollPropagatesConditionError(t *testing.T) {
	boom := errors.New("evaluate failed")
	err := poll(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("poll: err = %v, want %v", err, boom)
	}
}

func TestPollStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := poll(ctx, time.Millisecond, time.Minute, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("poll: err = %v, want context.Canceled", err)
	}
}
