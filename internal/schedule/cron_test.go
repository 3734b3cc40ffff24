package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/glizzus/lavanode/internal/schedule"
)

func TestNextRunTimesAfterSuccess(t *testing.T) {
	table := []struct {
		cron  string
		after time.Time
		n     int
		want  []time.Time
	}{
		{
			cron:  "0 0 * * *", // Every day at midnight
			after: time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC),
			n:     3,
			want: []time.Time{
				time.Date(2023, 10, 2, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 10, 3, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 10, 4, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			cron:  "*/5 * * * *", // Every 5 minutes
			after: time.Date(1981, 8, 29, 12, 0, 0, 0, time.UTC),
			n:     4,
			want: []time.Time{
				time.Date(1981, 8, 29, 12, 5, 0, 0, time.UTC),
				time.Date(1981, 8, 29, 12, 10, 0, 0, time.UTC),
				time.Date(1981, 8, 29, 12, 15, 0, 0, time.UTC),
				time.Date(1981, 8, 29, 12, 20, 0, 0, time.UTC),
			},
		},
		{
			cron:  "@monthly", // Monthly on the first weekday of the month at 00:00
			after: time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC),
			n:     2,
			want: []time.Time{
				time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			cron:  "0 9 * * 1", // Every Monday at 9 AM
			after: time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC),
			n:     3,
			want: []time.Time{
				time.Date(2023, 10, 2, 9, 0, 0, 0, time.UTC),
				time.Date(2023, 10, 9, 9, 0, 0, 0, time.UTC),
				time.Date(2023, 10, 16, 9, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tc := range table {
		t.Run(tc.cron, func(t *testing.T) {
			got, err := schedule.NextRunTimesAfter(tc.cron, tc.after, tc.n)
			if err != nil {
				t.Fatalf("NextRunTimesAfter(%q, %v, %d) returned error: %v", tc.cron, tc.after, tc.n, err)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("NextRunTimesAfter(%q, %v, %d) = %v; want %v", tc.cron, tc.after, tc.n, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestNextRunTimesAfterFailure(t *testing.T) {
	table := []struct {
		cron  string
		after time.Time
		n     int
	}{
		{
			cron:  "invalid cron",
			after: time.Now(),
			n:     3,
		},
		{
			cron:  "0 0 * * *",
			after: time.Now(),
			n:     -1,
		},
	}

	for _, tc := range table {
		t.Run(tc.cron, func(t *testing.T) {
			got, err := schedule.NextRunTimesAfter(tc.cron, tc.after, tc.n)
			if err == nil {
				t.Fatalf("NextRunTimesAfter(%q, %v, %d) expected error but got result: %v", tc.cron, tc.after, tc.n, got)
			}
		})
	}
}

func TestRunAtCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 1)
	schedule.RunAt(ctx, time.Now().Add(time.Hour), func(context.Context) {
		ran <- struct{}{}
	})
	cancel()

	select {
	case <-ran:
		t.Fatal("RunAt() executed after its context was cancelled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunAtPast(t *testing.T) {
	ran := make(chan struct{})
	schedule.RunAt(context.Background(), time.Now().Add(-time.Minute), func(context.Context) {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("RunAt() did not execute for a time in the past")
	}
}

func TestEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seven fields: cronexpr treats the first as seconds.
	runs := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- schedule.Every(ctx, "* * * * * * *", func(context.Context) {
			runs <- struct{}{}
		})
	}()

	for i := range 2 {
		select {
		case <-runs:
		case <-time.After(3 * time.Second):
			t.Fatalf("run %d did not happen", i+1)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Every() returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Every() did not return after cancel")
	}
}

func TestEveryInvalid(t *testing.T) {
	if err := schedule.Every(context.Background(), "not a cron", func(context.Context) {}); err == nil {
		t.Error("Every() accepted an invalid cron expression")
	}
}

func TestValidateCron(t *testing.T) {
	tests := []struct {
		name    string
		cron    string
		wantErr bool
	}{
		{name: "every five minutes", cron: "*/5 * * * *"},
		{name: "with seconds", cron: "30 */5 * * * * *"},
		{name: "garbage", cron: "every tuesday", wantErr: true},
		{name: "only in the past", cron: "0 0 0 1 1 * 1999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schedule.ValidateCron(tt.cron)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCron(%q) error = %v, wantErr %v", tt.cron, err, tt.wantErr)
			}
		})
	}
}
