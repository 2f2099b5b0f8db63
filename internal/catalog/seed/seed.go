// Package seed loads catalog records from a YAML document.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"resledger/internal/catalog/repository"
	"resledger/pkg/model"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

type Document struct {
	Locations   []Location   `yaml:"locations"`
	Instructors []Instructor `yaml:"instructors"`
	Groupings   []Grouping   `yaml:"groupings"`
}

type Location struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	ParentID string `yaml:"parent_id"`
	IsGroup  bool   `yaml:"is_group"`
	Bookable bool   `yaml:"bookable"`
	School   string `yaml:"school"`
}

type Instructor struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Employee string `yaml:"employee"`
}

type Grouping struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Kind         string  `yaml:"kind"`
	School       string  `yaml:"school"`
	AcademicYear string  `yaml:"academic_year"`
	Term         string  `yaml:"term"`
	Status       string  `yaml:"status"`
	PeriodStart  string  `yaml:"period_start"`
	PeriodEnd    string  `yaml:"period_end"`
	Rows         []Row   `yaml:"rows"`
	Blocks       []Block `yaml:"blocks"`
}

type Row struct {
	RotationDay int    `yaml:"rotation_day"`
	BlockNumber int    `yaml:"block_number"`
	Instructor  string `yaml:"instructor"`
	Employee    string `yaml:"employee"`
	Location    string `yaml:"location"`
}

type Block struct {
	RotationDay int    `yaml:"rotation_day"`
	BlockNumber int    `yaml:"block_number"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
}

// Stats counts the records written by Apply.
type Stats struct {
	Locations   int
	Instructors int
	Groupings   int
}

func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}
	return &doc, nil
}

// Apply saves every record of doc, replacing records with the same id.
// Grouping period dates are read in loc.
func Apply(ctx context.Context, repo repository.CatalogRepository, doc *Document, loc *time.Location) (Stats, error) {
	var stats Stats
	if loc == nil {
		loc = time.UTC
	}

	for _, l := range doc.Locations {
		if l.ID == "" {
			return stats, fmt.Errorf("location without id")
		}
		err := repo.SaveLocation(ctx, &model.Location{
			ID:       l.ID,
			Name:     l.Name,
			ParentID: l.ParentID,
			IsGroup:  l.IsGroup,
			Bookable: l.Bookable,
			School:   l.School,
		})
		if err != nil {
			return stats, fmt.Errorf("location %s: %w", l.ID, err)
		}
		stats.Locations++
	}

	for _, in := range doc.Instructors {
		if in.ID == "" {
			return stats, fmt.Errorf("instructor without id")
		}
		if err := repo.SaveInstructor(ctx, &model.Instructor{ID: in.ID, Name: in.Name, Employee: in.Employee}); err != nil {
			return stats, fmt.Errorf("instructor %s: %w", in.ID, err)
		}
		stats.Instructors++
	}

	for _, g := range doc.Groupings {
		grouping, err := g.toModel(loc)
		if err != nil {
			return stats, err
		}
		if err := repo.SaveGrouping(ctx, grouping); err != nil {
			return stats, fmt.Errorf("grouping %s: %w", g.ID, err)
		}
		stats.Groupings++
	}
	return stats, nil
}

func (g Grouping) toModel(loc *time.Location) (*model.Grouping, error) {
	if g.ID == "" {
		return nil, fmt.Errorf("grouping without id")
	}
	start, err := time.ParseInLocation(dateLayout, g.PeriodStart, loc)
	if err != nil {
		return nil, fmt.Errorf("grouping %s: invalid period_start %q", g.ID, g.PeriodStart)
	}
	end, err := time.ParseInLocation(dateLayout, g.PeriodEnd, loc)
	if err != nil {
		return nil, fmt.Errorf("grouping %s: invalid period_end %q", g.ID, g.PeriodEnd)
	}
	status := g.Status
	if status == "" {
		status = model.GroupingActive
	}

	out := &model.Grouping{
		ID:           g.ID,
		Name:         g.Name,
		Kind:         g.Kind,
		School:       g.School,
		AcademicYear: g.AcademicYear,
		Term:         g.Term,
		Status:       status,
		PeriodStart:  start,
		PeriodEnd:    end,
	}
	for _, r := range g.Rows {
		out.Rows = append(out.Rows, model.ScheduleRow{
			RotationDay: r.RotationDay,
			BlockNumber: r.BlockNumber,
			Instructor:  r.Instructor,
			Employee:    r.Employee,
			Location:    r.Location,
		})
	}
	for _, b := range g.Blocks {
		out.Blocks = append(out.Blocks, model.BlockTime{
			RotationDay: b.RotationDay,
			BlockNumber: b.BlockNumber,
			Start:       b.Start,
			End:         b.End,
		})
	}
	return out, nil
}
