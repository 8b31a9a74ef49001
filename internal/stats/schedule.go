package stats

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next collection time after a given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a standard five-field cron expression, evaluated in UTC.
func ParseSchedule(expression string) (Schedule, error) {
	sched, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}
	return utcSchedule{sched: sched}, nil
}

type utcSchedule struct {
	sched cron.Schedule
}

func (s utcSchedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.UTC())
}
