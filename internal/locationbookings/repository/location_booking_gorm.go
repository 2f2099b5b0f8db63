package repository

import (
	"context"
	"errors"
	"fmt"
	locationerrors "resledger/internal/locationbookings/errors"
	"resledger/pkg/db/gormdb"
	"resledger/pkg/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LocationBookingRow is the SQL representation of model.LocationBooking.
type LocationBookingRow struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Location      string    `gorm:"size:140;not null;index:ix_location_booking_window,priority:1"`
	FromDatetime  time.Time `gorm:"not null;index:ix_location_booking_window,priority:2"`
	ToDatetime    time.Time `gorm:"not null"`
	OccupancyType string    `gorm:"size:60;not null"`
	SourceKind    string    `gorm:"size:140;not null;index:ix_location_booking_source,priority:1"`
	SourceName    string    `gorm:"size:140;not null;index:ix_location_booking_source,priority:2"`
	SlotKey       string    `gorm:"size:512;not null;uniqueIndex:ux_location_booking_slot_key"`
	School        string    `gorm:"size:140"`
	AcademicYear  string    `gorm:"size:60"`
	CreatedBy     string    `gorm:"size:140"`
	ModifiedBy    string    `gorm:"size:140"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (LocationBookingRow) TableName() string {
	return "location_bookings"
}

func toRow(b *model.LocationBooking) *LocationBookingRow {
	return &LocationBookingRow{
		ID:            b.ID,
		Location:      b.Location,
		FromDatetime:  b.From.UTC(),
		ToDatetime:    b.To.UTC(),
		OccupancyType: b.OccupancyType,
		SourceKind:    b.Source.Kind,
		SourceName:    b.Source.Name,
		SlotKey:       b.SlotKey,
		School:        b.School,
		AcademicYear:  b.AcademicYear,
		CreatedBy:     b.CreatedBy,
		ModifiedBy:    b.ModifiedBy,
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
	}
}

func (row *LocationBookingRow) toModel() *model.LocationBooking {
	return &model.LocationBooking{
		ID:            row.ID,
		Location:      row.Location,
		From:          row.FromDatetime.UTC(),
		To:            row.ToDatetime.UTC(),
		OccupancyType: row.OccupancyType,
		Source:        model.SourceRef{Kind: row.SourceKind, Name: row.SourceName},
		SlotKey:       row.SlotKey,
		School:        row.School,
		AcademicYear:  row.AcademicYear,
		CreatedBy:     row.CreatedBy,
		ModifiedBy:    row.ModifiedBy,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

type gormLocationBookingRepository struct {
	db *gorm.DB
}

func NewGormLocationBookingRepository(db *gorm.DB) LocationBookingRepository {
	return &gormLocationBookingRepository{db: db}
}

func (r *gormLocationBookingRepository) Insert(ctx context.Context, booking *model.LocationBooking) error {
	row := toRow(booking)
	row.ID = uuid.NewString()

	if err := gormdb.Conn(ctx, r.db).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %v", locationerrors.ErrDuplicateKey, err)
		}
		return fmt.Errorf("failed to create location booking: %w", err)
	}

	booking.ID = row.ID
	return nil
}

func (r *gormLocationBookingRepository) Update(ctx context.Context, id string, booking *model.LocationBooking) error {
	if id == "" {
		return fmt.Errorf("%w: %s", locationerrors.ErrInvalidID, id)
	}

	result := gormdb.Conn(ctx, r.db).
		Model(&LocationBookingRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"location":       booking.Location,
			"from_datetime":  booking.From.UTC(),
			"to_datetime":    booking.To.UTC(),
			"occupancy_type": booking.OccupancyType,
			"source_kind":    booking.Source.Kind,
			"source_name":    booking.Source.Name,
			"school":         booking.School,
			"academic_year":  booking.AcademicYear,
			"modified_by":    booking.ModifiedBy,
			"updated_at":     booking.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update location booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// MySQL reports changed rows only, so an unchanged row also lands here.
		var count int64
		if err := gormdb.Conn(ctx, r.db).Model(&LocationBookingRow{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to update location booking: %w", err)
		}
		if count == 0 {
			return locationerrors.ErrNotFound
		}
	}
	return nil
}

func (r *gormLocationBookingRepository) FindBySlotKey(ctx context.Context, slotKey string) (*model.LocationBooking, error) {
	var row LocationBookingRow
	err := gormdb.Conn(ctx, r.db).Where("slot_key = ?", slotKey).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, locationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find location booking: %w", err)
	}
	return row.toModel(), nil
}

func (r *gormLocationBookingRepository) FindOverlapping(ctx context.Context, f OverlapFilter) ([]*model.LocationBooking, error) {
	if len(f.Locations) == 0 {
		return nil, nil
	}

	q := gormdb.Conn(ctx, r.db).
		Where("location IN ? AND from_datetime < ? AND to_datetime > ?", f.Locations, f.End.UTC(), f.Start.UTC())
	if f.ExcludeSource != nil {
		q = q.Where("NOT (source_kind = ? AND source_name = ?)", f.ExcludeSource.Kind, f.ExcludeSource.Name)
	}
	return r.find(q)
}

func (r *gormLocationBookingRepository) FindBySource(ctx context.Context, source model.SourceRef) ([]*model.LocationBooking, error) {
	return r.find(r.sourceQuery(ctx, source))
}

func (r *gormLocationBookingRepository) FindBySourceWithin(ctx context.Context, source model.SourceRef, start, end time.Time) ([]*model.LocationBooking, error) {
	q := r.sourceQuery(ctx, source).
		Where("from_datetime >= ? AND to_datetime <= ?", start.UTC(), end.UTC())
	return r.find(q)
}

func (r *gormLocationBookingRepository) DeleteBySource(ctx context.Context, source model.SourceRef) (int64, error) {
	result := r.sourceQuery(ctx, source).Delete(&LocationBookingRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete location bookings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormLocationBookingRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := gormdb.Conn(ctx, r.db).Where("id IN ?", ids).Delete(&LocationBookingRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete location bookings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormLocationBookingRepository) sourceQuery(ctx context.Context, source model.SourceRef) *gorm.DB {
	return gormdb.Conn(ctx, r.db).
		Where("source_kind = ? AND source_name = ?", source.Kind, source.Name)
}

func (r *gormLocationBookingRepository) find(q *gorm.DB) ([]*model.LocationBooking, error) {
	var rows []LocationBookingRow
	if err := q.Order("from_datetime ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find location bookings: %w", err)
	}

	bookings := make([]*model.LocationBooking, 0, len(rows))
	for i := range rows {
		bookings = append(bookings, rows[i].toModel())
	}
	return bookings, nil
}
