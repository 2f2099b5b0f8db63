package reconciler

import (
	"context"
	apperrors "resledger/pkg/errors"
	"resledger/pkg/model"
	"resledger/pkg/sanitizer"
)

// runCache memoises collaborator lookups for the length of one run.
type runCache struct {
	instructors InstructorResolver
	locations   LocationDirectory
	employees   map[string]string
	bookables   map[string]bool
}

func newRunCache(instructors InstructorResolver, locations LocationDirectory) *runCache {
	return &runCache{
		instructors: instructors,
		locations:   locations,
		employees:   map[string]string{},
		bookables:   map[string]bool{},
	}
}

// employee returns the row's explicit employee, else the employee linked to
// its instructor, else "".
func (c *runCache) employee(ctx context.Context, row model.ScheduleRow) (string, error) {
	if e := sanitizer.NormalizeName(row.Employee); e != "" {
		return e, nil
	}
	instructor := sanitizer.NormalizeName(row.Instructor)
	if instructor == "" || c.instructors == nil {
		return "", nil
	}
	if e, ok := c.employees[instructor]; ok {
		return e, nil
	}
	e, err := c.instructors.EmployeeFor(ctx, instructor)
	if err != nil {
		return "", apperrors.Internal("Failed to resolve instructor "+instructor, err)
	}
	e = sanitizer.NormalizeName(e)
	c.employees[instructor] = e
	return e, nil
}

func (c *runCache) bookable(ctx context.Context, location string) (bool, error) {
	if location == "" {
		return false, nil
	}
	if ok, seen := c.bookables[location]; seen {
		return ok, nil
	}
	ok, err := c.locations.IsBookable(ctx, location)
	if err != nil {
		return false, apperrors.Internal("Failed to check location "+location, err)
	}
	c.bookables[location] = ok
	return ok, nil
}
