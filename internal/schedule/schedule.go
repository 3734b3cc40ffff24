package schedule

import (
	"context"
	"log/slog"
	"time"
)

// RunAt executes fn once runAt has passed, unless ctx is done first.
func RunAt(ctx context.Context, runAt time.Time, execute func(ctx context.Context)) {
	go func() {
		timer := time.NewTimer(time.Until(runAt))
		defer timer.Stop()
		select {
		case <-timer.C:
			execute(ctx)
		case <-ctx.Done():
		}
	}()
}

// Every runs execute at each time the cron expression fires until ctx is
// done. Runs are sequential; a run that overlaps the next firing time delays
// it rather than running concurrently.
func Every(ctx context.Context, cron string, execute func(ctx context.Context)) error {
	expr, err := parse(cron)
	if err != nil {
		return err
	}

	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			slog.Warn("Cron expression has no further run times", "cron", cron)
			return nil
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			execute(ctx)
		}
	}
}
