package timetable

import (
	"context"
	"fmt"
	"resledger/pkg/model"
	"time"

	"github.com/teambition/rrule-go"
)

// GroupingLookup loads a grouping with its block times.
type GroupingLookup interface {
	Grouping(ctx context.Context, id string) (*model.Grouping, error)
}

// WeeklyEnumerator treats the rotation day as the ISO weekday (1 = Monday) and
// repeats every block weekly inside the grouping's period. Schools with real
// rotation calendars plug in their own enumerator.
type WeeklyEnumerator struct {
	groupings GroupingLookup
	loc       *time.Location
}

func NewWeeklyEnumerator(groupings GroupingLookup, loc *time.Location) *WeeklyEnumerator {
	if loc == nil {
		loc = time.UTC
	}
	return &WeeklyEnumerator{groupings: groupings, loc: loc}
}

var isoWeekdays = map[int]rrule.Weekday{
	1: rrule.MO,
	2: rrule.TU,
	3: rrule.WE,
	4: rrule.TH,
	5: rrule.FR,
	6: rrule.SA,
	7: rrule.SU,
}

// Slots enumerates the occurrences between the dates of windowStart and
// windowEnd, both inclusive, clipped to the grouping's period. Each call
// returns a fresh iterator.
func (e *WeeklyEnumerator) Slots(ctx context.Context, groupingID string, windowStart, windowEnd time.Time) (Iterator, error) {
	g, err := e.groupings.Grouping(ctx, groupingID)
	if err != nil {
		return nil, err
	}

	first, last := e.date(windowStart), e.date(windowEnd)
	if !g.PeriodStart.IsZero() && e.date(g.PeriodStart).After(first) {
		first = e.date(g.PeriodStart)
	}
	if !g.PeriodEnd.IsZero() && e.date(g.PeriodEnd).Before(last) {
		last = e.date(g.PeriodEnd)
	}
	if last.Before(first) {
		return FromSlice(nil), nil
	}

	streams := make([]*blockStream, 0, len(g.Blocks))
	for _, b := range g.Blocks {
		s, err := e.stream(b, first, last)
		if err != nil {
			return nil, fmt.Errorf("grouping %s: %w", groupingID, err)
		}
		streams = append(streams, s)
	}
	return &mergeIterator{streams: streams}, nil
}

func (e *WeeklyEnumerator) date(t time.Time) time.Time {
	t = t.In(e.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc)
}

func (e *WeeklyEnumerator) stream(b model.BlockTime, first, last time.Time) (*blockStream, error) {
	weekday, ok := isoWeekdays[b.RotationDay]
	if !ok {
		return nil, fmt.Errorf("rotation day %d is not an ISO weekday", b.RotationDay)
	}
	start, err := parseClock(b.Start)
	if err != nil {
		return nil, fmt.Errorf("block %d/%d start: %w", b.RotationDay, b.BlockNumber, err)
	}
	end, err := parseClock(b.End)
	if err != nil {
		return nil, fmt.Errorf("block %d/%d end: %w", b.RotationDay, b.BlockNumber, err)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   first,
		Until:     last,
		Byweekday: []rrule.Weekday{weekday},
	})
	if err != nil {
		return nil, fmt.Errorf("block %d/%d recurrence: %w", b.RotationDay, b.BlockNumber, err)
	}

	return &blockStream{block: b, start: start, end: end, loc: e.loc, next: rule.Iterator()}, nil
}

// parseClock parses "HH:MM" into an offset from midnight.
func parseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

type blockStream struct {
	block      model.BlockTime
	start, end time.Duration
	loc        *time.Location
	next       rrule.Next
	head       *model.Slot
	done       bool
}

func (s *blockStream) peek() *model.Slot {
	if s.head != nil || s.done {
		return s.head
	}
	day, ok := s.next()
	if !ok {
		s.done = true
		return nil
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	s.head = &model.Slot{
		RotationDay: s.block.RotationDay,
		BlockNumber: s.block.BlockNumber,
		Start:       wallClock(midnight, s.start),
		End:         wallClock(midnight, s.end),
	}
	return s.head
}

// wallClock adds a clock offset to midnight by wall time so DST days keep the
// written hours.
func wallClock(midnight time.Time, offset time.Duration) time.Time {
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), h, m, 0, 0, midnight.Location())
}

// mergeIterator interleaves the block streams in start order.
type mergeIterator struct {
	streams []*blockStream
	err     error
}

func (it *mergeIterator) Next(ctx context.Context) (model.Slot, bool) {
	if err := ctx.Err(); err != nil {
		it.err = err
		return model.Slot{}, false
	}

	var best *blockStream
	for _, s := range it.streams {
		head := s.peek()
		if head == nil {
			continue
		}
		if best == nil || head.Start.Before(best.head.Start) {
			best = s
		}
	}
	if best == nil {
		return model.Slot{}, false
	}
	slot := *best.head
	best.head = nil
	return slot, true
}

func (it *mergeIterator) Err() error {
	return it.err
}
