package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

var ErrInvalidCount = errors.New("count must be greater than 0")

// NextRunTimes returns the next n times in UTC that cron fires.
func NextRunTimes(cron string, n int) ([]time.Time, error) {
	return NextRunTimesAfter(cron, time.Now().UTC(), n)
}

// NextRunTimesAfter returns the next n times cron fires after after.
func NextRunTimesAfter(cron string, after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, ErrInvalidCount
	}
	expr, err := parse(cron)
	if err != nil {
		return nil, err
	}
	return expr.NextN(after, uint(n)), nil
}

// ValidateCron rejects expressions that do not parse or never fire.
func ValidateCron(cron string) error {
	expr, err := parse(cron)
	if err != nil {
		return err
	}
	if expr.Next(time.Now()).IsZero() {
		return fmt.Errorf("cron expression %q never fires", cron)
	}
	return nil
}

func parse(cron string) (*cronexpr.Expression, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cron, err)
	}
	return expr, nil
}
