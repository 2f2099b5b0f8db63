// Package timetable turns a grouping's recurring pattern into concrete slots.
package timetable

import (
	"context"
	"resledger/pkg/model"
)

// Iterator yields slots one at a time. Next returns false once the sequence is
// exhausted or ctx is done; Err reports why iteration stopped early.
type Iterator interface {
	Next(ctx context.Context) (model.Slot, bool)
	Err() error
}

type sliceIterator struct {
	slots []model.Slot
	pos   int
	err   error
}

// FromSlice iterates over a fixed slot list.
func FromSlice(slots []model.Slot) Iterator {
	return &sliceIterator{slots: slots}
}

func (it *sliceIterator) Next(ctx context.Context) (model.Slot, bool) {
	if err := ctx.Err(); err != nil {
		it.err = err
		return model.Slot{}, false
	}
	if it.pos >= len(it.slots) {
		return model.Slot{}, false
	}
	s := it.slots[it.pos]
	it.pos++
	return s, true
}

func (it *sliceIterator) Err() error {
	return it.err
}

// Collect drains it into a slice.
func Collect(ctx context.Context, it Iterator) ([]model.Slot, error) {
	var out []model.Slot
	for {
		s, ok := it.Next(ctx)
		if !ok {
			return out, it.Err()
		}
		out = append(out, s)
	}
}
