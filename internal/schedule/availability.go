package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Calculator derives bookable windows from the recurring rules, the off-day
// exceptions and the booking ledger. It is read-only and lock-free: results
// may be slightly stale under concurrent writes, which is fine because the
// booking write path re-validates against the live ledger.
type Calculator struct {
	repo Repository
}

func NewCalculator(repo Repository) *Calculator {
	return &Calculator{repo: repo}
}

// RuleWindows partitions a rule's working interval into consecutive
// fixed-width windows. A trailing window shorter than the full slot duration
// is dropped.
func RuleWindows(rule *WorkingHourRule) []AvailableWindow {
	if rule.SlotDuration <= 0 || rule.StartTime >= rule.EndTime {
		return nil
	}
	var windows []AvailableWindow
	for start := rule.StartTime; start.Add(rule.SlotDuration) <= rule.EndTime; start = start.Add(rule.SlotDuration) {
		windows = append(windows, AvailableWindow{
			StartTime: start,
			EndTime:   start.Add(rule.SlotDuration),
		})
	}
	return windows
}

// ComputeAvailability returns the bookable windows per day for [from, to]
// inclusive. An inverted range yields an empty result, as does an unknown
// doctor (no rules, no windows). The rules, off days and ledger entries are
// loaded once for the whole range, so the walk is O(days * slots_per_day)
// with three store round trips regardless of range length.
func (c *Calculator) ComputeAvailability(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]DayAvailability, error) {
	from, to = Day(from), Day(to)
	if from.After(to) {
		return []DayAvailability{}, nil
	}

	rules, err := c.repo.ListActiveRulesByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	ruleByWeekday := make(map[int]*WorkingHourRule, len(rules))
	for i := range rules {
		ruleByWeekday[rules[i].DayOfWeek] = &rules[i]
	}

	offDays, err := c.repo.ListOffDays(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load off days: %w", err)
	}
	offByDate := make(map[string]struct{}, len(offDays))
	for _, od := range offDays {
		offByDate[FormatISODate(od.Date)] = struct{}{}
	}

	slots, err := c.repo.ListSlotsInRange(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	taken := make(map[string]struct{}, len(slots))
	for _, s := range slots {
		taken[slotKey(s.Date, s.StartTime)] = struct{}{}
	}

	var days []DayAvailability
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		day := DayAvailability{
			Date:      d,
			DayOfWeek: int(d.Weekday()),
			Slots:     []AvailableWindow{},
		}

		if _, off := offByDate[FormatISODate(d)]; !off {
			if rule, ok := ruleByWeekday[day.DayOfWeek]; ok {
				for _, w := range RuleWindows(rule) {
					if _, occupied := taken[slotKey(d, w.StartTime)]; occupied {
						continue
					}
					day.Slots = append(day.Slots, w)
				}
			}
		}

		days = append(days, day)
	}

	return days, nil
}

// WindowAt resolves the single window starting at start for the given day,
// applying the same rule/off-day checks as ComputeAvailability but without
// consulting the ledger. Returns ErrInvalidWindow when no such window exists.
func (c *Calculator) WindowAt(ctx context.Context, doctorID uuid.UUID, date time.Time, start TimeOfDay) (*AvailableWindow, error) {
	date = Day(date)

	if od, err := c.repo.GetOffDay(ctx, doctorID, date); err != nil {
		return nil, fmt.Errorf("check off day: %w", err)
	} else if od != nil {
		return nil, fmt.Errorf("%w: %s is an off day", ErrInvalidWindow, FormatISODate(date))
	}

	rule, err := c.repo.GetActiveRule(ctx, doctorID, int(date.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("load rule: %w", err)
	}
	if rule == nil {
		return nil, fmt.Errorf("%w: no working hours on %s", ErrInvalidWindow, date.Weekday())
	}

	for _, w := range RuleWindows(rule) {
		if w.StartTime == start {
			return &w, nil
		}
	}
	return nil, fmt.Errorf("%w: %s does not start a slot", ErrInvalidWindow, start)
}
