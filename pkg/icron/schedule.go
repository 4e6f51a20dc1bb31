// Package icron answers questions about cron schedules that robfig/cron
// does not, such as when a schedule last fired.
package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// lookback bounds the search for the previous trigger.
const lookback = 366 * 24 * time.Hour

type TriggerInfo struct {
	Expression string
	Last       time.Time
	Next       time.Time

	TimeSinceLast time.Duration
	TimeUntilNext time.Duration
}

// Parse reads a standard five field expression or a descriptor such as
// "@daily", the same forms cron.New accepts.
func Parse(cronExpr string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// Previous returns the latest activation of schedule at or before ref, or
// the zero time when there is none within a year.
func Previous(schedule cron.Schedule, ref time.Time) time.Time {
	limit := ref.Add(-lookback)
	// widen the window until it holds an activation, then walk it forward
	for window := time.Minute; ; window *= 2 {
		from := ref.Add(-window)
		if from.Before(limit) {
			from = limit
		}
		// Next is strictly after its argument, so step back one second to
		// include an activation exactly at from
		var prev time.Time
		for t := schedule.Next(from.Add(-time.Second)); !t.IsZero() && !t.After(ref); t = schedule.Next(t) {
			prev = t
		}
		if !prev.IsZero() || !from.After(limit) {
			return prev
		}
	}
}

// GetTriggerInfo returns the activations around refTime. Last is zero when
// the schedule did not fire in the year before refTime.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := Parse(cronExpr)
	if err != nil {
		return nil, err
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Last:       Previous(schedule, refTime),
		Next:       schedule.Next(refTime),
	}
	info.TimeUntilNext = info.Next.Sub(refTime)
	if !info.Last.IsZero() {
		info.TimeSinceLast = refTime.Sub(info.Last)
	}
	return info, nil
}
