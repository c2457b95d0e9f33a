package background

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

type stubAttemptPurger struct {
	calls int
	err   error
}

func (s *stubAttemptPurger) DeleteExpired(ctx context.Context) (int64, error) {
	s.calls++
	return 3, s.err
}

type stubEventPurger struct {
	calls     int
	olderThan time.Time
}

func (s *stubEventPurger) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	s.calls++
	s.olderThan = olderThan
	return 2, nil
}

func TestRetentionManager_SweepsOnStartup(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	attempts := &stubAttemptPurger{}
	events := &stubEventPurger{}

	rm := NewRetentionManager(attempts, events, 365*24*time.Hour, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rm.Start(ctx)
		close(done)
	}()

	// The first sweep runs before the first tick
	deadline := time.After(2 * time.Second)
	for attempts.calls == 0 || events.calls == 0 {
		select {
		case <-deadline:
			t.Fatal("expected startup sweep")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	// The event horizon tracks the configured retention
	wantHorizon := time.Now().Add(-365 * 24 * time.Hour)
	if events.olderThan.Sub(wantHorizon) > time.Minute || wantHorizon.Sub(events.olderThan) > time.Minute {
		t.Errorf("unexpected purge horizon: %v", events.olderThan)
	}
}

func TestRetentionManager_ContinuesAfterError(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	attempts := &stubAttemptPurger{err: errors.New("connection refused")}
	events := &stubEventPurger{}

	rm := NewRetentionManager(attempts, events, time.Hour, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rm.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for events.calls == 0 {
		select {
		case <-deadline:
			t.Fatal("event purge should run even when attempt purge fails")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRetentionManager_Stop(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	rm := NewRetentionManager(&stubAttemptPurger{}, &stubEventPurger{}, time.Hour, time.Hour, logger)

	done := make(chan struct{})
	go func() {
		rm.Start(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	rm.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retention manager did not stop")
	}
}
