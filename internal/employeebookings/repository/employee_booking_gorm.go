package repository

import (
	"context"
	"errors"
	"fmt"
	employeeerrors "resledger/internal/employeebookings/errors"
	"resledger/pkg/db/gormdb"
	"resledger/pkg/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmployeeBookingRow is the SQL representation of model.EmployeeBooking.
// Times are stored in UTC so range predicates compare consistently on every
// dialect.
type EmployeeBookingRow struct {
	ID                 string    `gorm:"primaryKey;size:36"`
	Employee           string    `gorm:"size:140;not null;uniqueIndex:ux_employee_booking_slot,priority:1;index:ix_employee_booking_window,priority:1"`
	SourceKind         string    `gorm:"size:140;not null;uniqueIndex:ux_employee_booking_slot,priority:2;index:ix_employee_booking_source,priority:1"`
	SourceName         string    `gorm:"size:140;not null;uniqueIndex:ux_employee_booking_slot,priority:3;index:ix_employee_booking_source,priority:2"`
	FromDatetime       time.Time `gorm:"not null;uniqueIndex:ux_employee_booking_slot,priority:4;index:ix_employee_booking_window,priority:2"`
	ToDatetime         time.Time `gorm:"not null;uniqueIndex:ux_employee_booking_slot,priority:5"`
	BookingType        string    `gorm:"size:60;not null"`
	BlocksAvailability bool      `gorm:"not null"`
	Location           string    `gorm:"size:140"`
	School             string    `gorm:"size:140"`
	AcademicYear       string    `gorm:"size:60"`
	CreatedBy          string    `gorm:"size:140"`
	ModifiedBy         string    `gorm:"size:140"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (EmployeeBookingRow) TableName() string {
	return "employee_bookings"
}

func toRow(b *model.EmployeeBooking) *EmployeeBookingRow {
	return &EmployeeBookingRow{
		ID:                 b.ID,
		Employee:           b.Employee,
		SourceKind:         b.Source.Kind,
		SourceName:         b.Source.Name,
		FromDatetime:       b.From.UTC(),
		ToDatetime:         b.To.UTC(),
		BookingType:        b.BookingType,
		BlocksAvailability: b.BlocksAvailability,
		Location:           b.Location,
		School:             b.School,
		AcademicYear:       b.AcademicYear,
		CreatedBy:          b.CreatedBy,
		ModifiedBy:         b.ModifiedBy,
		CreatedAt:          b.CreatedAt.UTC(),
		UpdatedAt:          b.UpdatedAt.UTC(),
	}
}

func (row *EmployeeBookingRow) toModel() *model.EmployeeBooking {
	return &model.EmployeeBooking{
		ID:                 row.ID,
		Employee:           row.Employee,
		From:               row.FromDatetime.UTC(),
		To:                 row.ToDatetime.UTC(),
		Source:             model.SourceRef{Kind: row.SourceKind, Name: row.SourceName},
		BookingType:        row.BookingType,
		BlocksAvailability: row.BlocksAvailability,
		Location:           row.Location,
		School:             row.School,
		AcademicYear:       row.AcademicYear,
		CreatedBy:          row.CreatedBy,
		ModifiedBy:         row.ModifiedBy,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
	}
}

type gormEmployeeBookingRepository struct {
	db *gorm.DB
}

func NewGormEmployeeBookingRepository(db *gorm.DB) EmployeeBookingRepository {
	return &gormEmployeeBookingRepository{db: db}
}

func (r *gormEmployeeBookingRepository) Insert(ctx context.Context, booking *model.EmployeeBooking) error {
	row := toRow(booking)
	row.ID = uuid.NewString()

	if err := gormdb.Conn(ctx, r.db).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %v", employeeerrors.ErrDuplicateKey, err)
		}
		return fmt.Errorf("failed to create employee booking: %w", err)
	}

	booking.ID = row.ID
	return nil
}

func (r *gormEmployeeBookingRepository) Update(ctx context.Context, id string, booking *model.EmployeeBooking) error {
	if id == "" {
		return fmt.Errorf("%w: %s", employeeerrors.ErrInvalidID, id)
	}

	result := gormdb.Conn(ctx, r.db).
		Model(&EmployeeBookingRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"from_datetime":       booking.From.UTC(),
			"to_datetime":         booking.To.UTC(),
			"booking_type":        booking.BookingType,
			"blocks_availability": booking.BlocksAvailability,
			"location":            booking.Location,
			"school":              booking.School,
			"academic_year":       booking.AcademicYear,
			"modified_by":         booking.ModifiedBy,
			"updated_at":          booking.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %v", employeeerrors.ErrDuplicateKey, result.Error)
		}
		return fmt.Errorf("failed to update employee booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// MySQL reports changed rows only, so an unchanged row also lands here.
		var count int64
		if err := gormdb.Conn(ctx, r.db).Model(&EmployeeBookingRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to update employee booking: %w", err)
		}
		if count == 0 {
			return employeeerrors.ErrNotFound
		}
	}
	return nil
}

func (r *gormEmployeeBookingRepository) FindOne(ctx context.Context, lookup Lookup) (*model.EmployeeBooking, error) {
	q := gormdb.Conn(ctx, r.db).
		Where("employee = ? AND source_kind = ? AND source_name = ?", lookup.Employee, lookup.Source.Kind, lookup.Source.Name)
	if lookup.From != nil && lookup.To != nil {
		q = q.Where("from_datetime = ? AND to_datetime = ?", lookup.From.UTC(), lookup.To.UTC())
	}

	var row EmployeeBookingRow
	if err := q.Order("from_datetime ASC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, employeeerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find employee booking: %w", err)
	}
	return row.toModel(), nil
}

func (r *gormEmployeeBookingRepository) FindOverlapping(ctx context.Context, f OverlapFilter) ([]*model.EmployeeBooking, error) {
	q := gormdb.Conn(ctx, r.db).
		Where("employee = ? AND from_datetime < ? AND to_datetime > ?", f.Employee, f.End.UTC(), f.Start.UTC())
	if !f.IncludeSoft {
		q = q.Where("blocks_availability = ?", true)
	}
	if f.ExcludeSource != nil {
		q = q.Where("NOT (source_kind = ? AND source_name = ?)", f.ExcludeSource.Kind, f.ExcludeSource.Name)
	}
	return r.find(q)
}

func (r *gormEmployeeBookingRepository) FindBySource(ctx context.Context, source model.SourceRef, employee string) ([]*model.EmployeeBooking, error) {
	return r.find(r.sourceQuery(ctx, source, employee))
}

func (r *gormEmployeeBookingRepository) FindBySourceWithin(ctx context.Context, source model.SourceRef, start, end time.Time) ([]*model.EmployeeBooking, error) {
	q := r.sourceQuery(ctx, source, "").
		Where("from_datetime >= ? AND to_datetime <= ?", start.UTC(), end.UTC())
	return r.find(q)
}

func (r *gormEmployeeBookingRepository) DeleteBySource(ctx context.Context, source model.SourceRef, employee string) (int64, error) {
	result := r.sourceQuery(ctx, source, employee).Delete(&EmployeeBookingRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete employee bookings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormEmployeeBookingRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := gormdb.Conn(ctx, r.db).Where("id IN ?", ids).Delete(&EmployeeBookingRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete employee bookings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormEmployeeBookingRepository) sourceQuery(ctx context.Context, source model.SourceRef, employee string) *gorm.DB {
	q := gormdb.Conn(ctx, r.db).
		Where("source_kind = ? AND source_name = ?", source.Kind, source.Name)
	if employee != "" {
		q = q.Where("employee = ?", employee)
	}
	return q
}

func (r *gormEmployeeBookingRepository) find(q *gorm.DB) ([]*model.EmployeeBooking, error) {
	var rows []EmployeeBookingRow
	if err := q.Order("from_datetime ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find employee bookings: %w", err)
	}

	bookings := make([]*model.EmployeeBooking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, rows[i].toModel())
	}
	return bookings, nil
}
