package repository

import (
	"context"
	"errors"
	"fmt"
	catalogerrors "resledger/internal/catalog/errors"
	"resledger/pkg/db/gormdb"
	"resledger/pkg/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupingRow struct {
	ID           string `gorm:"primaryKey;size:140"`
	Name         string `gorm:"size:140"`
	Kind         string `gorm:"size:140"`
	School       string `gorm:"size:140;index:ix_grouping_scope,priority:1"`
	AcademicYear string `gorm:"size:60;index:ix_grouping_scope,priority:2"`
	Term         string `gorm:"size:60"`
	Status       string `gorm:"size:20;index"`
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Rows         []ScheduleRowRow `gorm:"foreignKey:GroupingID;constraint:OnDelete:CASCADE"`
	Blocks       []BlockTimeRow   `gorm:"foreignKey:GroupingID;constraint:OnDelete:CASCADE"`
	UpdatedAt    time.Time
}

func (GroupingRow) TableName() string {
	return "groupings"
}

type ScheduleRowRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	GroupingID  string `gorm:"size:140;not null;index"`
	RotationDay int    `gorm:"not null"`
	BlockNumber int    `gorm:"not null"`
	Instructor  string `gorm:"size:140"`
	Employee    string `gorm:"size:140"`
	Location    string `gorm:"size:140"`
}

func (ScheduleRowRow) TableName() string {
	return "grouping_schedule_rows"
}

type BlockTimeRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	GroupingID  string `gorm:"size:140;not null;index"`
	RotationDay int    `gorm:"not null"`
	BlockNumber int    `gorm:"not null"`
	StartTime   string `gorm:"size:5;not null"`
	EndTime     string `gorm:"size:5;not null"`
}

func (BlockTimeRow) TableName() string {
	return "grouping_block_times"
}

type InstructorRow struct {
	ID       string `gorm:"primaryKey;size:140"`
	Name     string `gorm:"size:140"`
	Employee string `gorm:"size:140"`
}

func (InstructorRow) TableName() string {
	return "instructors"
}

type LocationRow struct {
	ID       string `gorm:"primaryKey;size:140"`
	Name     string `gorm:"size:140"`
	ParentID string `gorm:"size:140;index"`
	IsGroup  bool   `gorm:"not null"`
	Bookable bool   `gorm:"not null"`
	School   string `gorm:"size:140"`
}

func (LocationRow) TableName() string {
	return "locations"
}

// Models lists the catalog tables for AutoMigrate.
func Models() []any {
	return []any{&GroupingRow{}, &ScheduleRowRow{}, &BlockTimeRow{}, &InstructorRow{}, &LocationRow{}}
}

type gormCatalogRepository struct {
	db *gorm.DB
}

func NewGormCatalogRepository(db *gorm.DB) CatalogRepository {
	return &gormCatalogRepository{db: db}
}

func (r *gormCatalogRepository) FindGrouping(ctx context.Context, id string) (*model.Grouping, error) {
	var row GroupingRow
	err := gormdb.Conn(ctx, r.db).
		Preload("Rows", func(db *gorm.DB) *gorm.DB { return db.Order("rotation_day, block_number") }).
		Preload("Blocks", func(db *gorm.DB) *gorm.DB { return db.Order("rotation_day, block_number") }).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogerrors.ErrGroupingNotFound
		}
		return nil, fmt.Errorf("failed to find grouping: %w", err)
	}
	return row.toModel(), nil
}

func (r *gormCatalogRepository) ListGroupingIDs(ctx context.Context, f model.GroupingFilter) ([]string, error) {
	q := gormdb.Conn(ctx, r.db).Model(&GroupingRow{})
	if f.School != "" {
		q = q.Where("school = ?", f.School)
	}
	if f.AcademicYear != "" {
		q = q.Where("academic_year = ?", f.AcademicYear)
	}
	if f.ActiveOnly {
		q = q.Where("status = ?", model.GroupingActive)
	}

	var ids []string
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list groupings: %w", err)
	}
	return ids, nil
}

func (r *gormCatalogRepository) FindInstructor(ctx context.Context, id string) (*model.Instructor, error) {
	var row InstructorRow
	if err := gormdb.Conn(ctx, r.db).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogerrors.ErrInstructorNotFound
		}
		return nil, fmt.Errorf("failed to find instructor: %w", err)
	}
	return &model.Instructor{ID: row.ID, Name: row.Name, Employee: row.Employee}, nil
}

func (r *gormCatalogRepository) ListLocations(ctx context.Context) ([]model.Location, error) {
	var rows []LocationRow
	if err := gormdb.Conn(ctx, r.db).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}

	locations := make([]model.Location, 0, len(rows))
	for _, row := range rows {
		locations = append(locations, model.Location{
			ID:       row.ID,
			Name:     row.Name,
			ParentID: row.ParentID,
			IsGroup:  row.IsGroup,
			Bookable: row.Bookable,
			School:   row.School,
		})
	}
	return locations, nil
}

// SaveGrouping upserts the grouping and replaces its schedule rows and block
// times in one transaction.
func (r *gormCatalogRepository) SaveGrouping(ctx context.Context, g *model.Grouping) error {
	if g.ID == "" {
		return catalogerrors.ErrInvalidGrouping
	}
	row := groupingRow(g)

	err := gormdb.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "kind", "school", "academic_year", "term", "status", "period_start", "period_end", "updated_at"}),
		}).Create(row).Error; err != nil {
			return err
		}

		if err := tx.Where("grouping_id = ?", g.ID).Delete(&ScheduleRowRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("grouping_id = ?", g.ID).Delete(&BlockTimeRow{}).Error; err != nil {
			return err
		}
		if len(row.Rows) > 0 {
			if err := tx.Create(&row.Rows).Error; err != nil {
				return err
			}
		}
		if len(row.Blocks) > 0 {
			if err := tx.Create(&row.Blocks).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save grouping %q: %w", g.ID, err)
	}
	return nil
}

func (r *gormCatalogRepository) SaveInstructor(ctx context.Context, in *model.Instructor) error {
	row := &InstructorRow{ID: in.ID, Name: in.Name, Employee: in.Employee}
	err := gormdb.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "employee"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save instructor %q: %w", in.ID, err)
	}
	return nil
}

func (r *gormCatalogRepository) SaveLocation(ctx context.Context, loc *model.Location) error {
	row := &LocationRow{
		ID:       loc.ID,
		Name:     loc.Name,
		ParentID: loc.ParentID,
		IsGroup:  loc.IsGroup,
		Bookable: loc.Bookable,
		School:   loc.School,
	}
	err := gormdb.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "parent_id", "is_group", "bookable", "school"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save location %q: %w", loc.ID, err)
	}
	return nil
}

func groupingRow(g *model.Grouping) *GroupingRow {
	row := &GroupingRow{
		ID:           g.ID,
		Name:         g.Name,
		Kind:         g.Kind,
		School:       g.School,
		AcademicYear: g.AcademicYear,
		Term:         g.Term,
		Status:       g.Status,
		PeriodStart:  g.PeriodStart.UTC(),
		PeriodEnd:    g.PeriodEnd.UTC(),
	}
	for _, sr := range g.Rows {
		row.Rows = append(row.Rows, ScheduleRowRow{
			GroupingID:  g.ID,
			RotationDay: sr.RotationDay,
			BlockNumber: sr.BlockNumber,
			Instructor:  sr.Instructor,
			Employee:    sr.Employee,
			Location:    sr.Location,
		})
	}
	for _, b := range g.Blocks {
		row.Blocks = append(row.Blocks, BlockTimeRow{
			GroupingID:  g.ID,
			RotationDay: b.RotationDay,
			BlockNumber: b.BlockNumber,
			StartTime:   b.Start,
			EndTime:     b.End,
		})
	}
	return row
}

func (row *GroupingRow) toModel() *model.Grouping {
	g := &model.Grouping{
		ID:           row.ID,
		Name:         row.Name,
		Kind:         row.Kind,
		School:       row.School,
		AcademicYear: row.AcademicYear,
		Term:         row.Term,
		Status:       row.Status,
		PeriodStart:  row.PeriodStart.UTC(),
		PeriodEnd:    row.PeriodEnd.UTC(),
	}
	for _, sr := range row.Rows {
		g.Rows = append(g.Rows, model.ScheduleRow{
			RotationDay: sr.RotationDay,
			BlockNumber: sr.BlockNumber,
			Instructor:  sr.Instructor,
			Employee:    sr.Employee,
			Location:    sr.Location,
		})
	}
	for _, b := range row.Blocks {
		g.Blocks = append(g.Blocks, model.BlockTime{
			RotationDay: b.RotationDay,
			BlockNumber: b.BlockNumber,
			Start:       b.StartTime,
			End:         b.EndTime,
		})
	}
	return g
}
