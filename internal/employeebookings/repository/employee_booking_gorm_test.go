package repository

import (
	"context"
	employeeerrors "resledger/internal/employeebookings/errors"
	"resledger/pkg/db/gormdb"
	"resledger/pkg/db/gormdb/gormtest"
	"resledger/pkg/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour int) time.Time {
	return time.Date(2025, 9, day, hour, 0, 0, 0, time.UTC)
}

func newBooking(employee string, source model.SourceRef, from, to time.Time) *model.EmployeeBooking {
	return &model.EmployeeBooking{
		Employee:           employee,
		From:               from,
		To:                 to,
		Source:             source,
		BookingType:        model.BookingTypeTeaching,
		BlocksAvailability: true,
		Location:           "R1",
		CreatedAt:          from,
		UpdatedAt:          from,
	}
}

func TestGormEmployeeBookingRepository_InsertAndFindOne(t *testing.T) {
	db := gormtest.Open(t, &EmployeeBookingRow{})
	repo := NewGormEmployeeBookingRepository(db)
	ctx := context.Background()
	g1 := model.NewSourceRef(model.SourceStudentGroup, "G1")

	b := newBooking("E1", g1, at(1, 9), at(1, 10))
	require.NoError(t, repo.Insert(ctx, b))
	assert.NotEmpty(t, b.ID)

	got, err := repo.FindOne(ctx, Lookup{Employee: "E1", Source: g1})
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.True(t, got.From.Equal(at(1, 9)))
	assert.Equal(t, g1, got.Source)

	from, to := at(1, 10), at(1, 11)
	_, err = repo.FindOne(ctx, Lookup{Employee: "E1", Source: g1, From: &from, To: &to})
	assert.ErrorIs(t, err, employeeerrors.ErrNotFound)
}

func TestGormEmployeeBookingRepository_DuplicateSlot(t *testing.T) {
	db := gormtest.Open(t, &EmployeeBookingRow{})
	repo := NewGormEmployeeBookingRepository(db)
	ctx := context.Background()
	g1 := model.NewSourceRef(model.SourceStudentGroup, "G1")

	require.NoError(t, repo.Insert(ctx, newBooking("E1", g1, at(1, 9), at(1, 10))))
	err := repo.Insert(ctx, newBooking("E1", g1, at(1, 9), at(1, 10)))
	assert.ErrorIs(t, err, employeeerrors.ErrDuplicateKey)
}

func TestGormEmployeeBookingRepository_BlocksAvailabilityFalseIsStored(t *testing.T) {
	db := gormtest.Open(t, &EmployeeBookingRow{})
	repo := NewGormEmployeeBookingRepository(db)
	ctx := context.Background()

	soft := newBooking("E1", model.NewSourceRef(model.SourceMeeting, "M1"), at(1, 9), at(1, 10))
	soft.BlocksAvailability = false
	require.NoError(t, repo.Insert(ctx, soft))

	hard, err := repo.FindOverlapping(ctx, OverlapFilter{Employee: "E1", Start: at(1, 8), End: at(1, 12)})
	require.NoError(t, err)
	assert.Empty(t, hard)

	all, err := repo.FindOverlapping(ctx, OverlapFilter{Employee: "E1", Start: at(1, 8), End: at(1, 12), IncludeSoft: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].BlocksAvailability)
}

func TestGormEmployeeBookingRepository_FindOverlappingRange(t *testing.T) {
	db := gormtest.Open(t, &EmployeeBookingRow{})
	repo := NewGormEmployeeBookingRepository(db)
	ctx := context.Background()
	m1 := model.NewSourceRef(model.SourceMeeting, "M1")
	m2 := model.NewSourceRef(model.SourceMeeting, "M2")

	require.NoError(t, repo.Insert(ctx, newBooking("E1", m1, at(1, 9), at(1, 10))))
	require.NoError(t, repo.Insert(ctx, newBooking("E1", m2, at(1, 10), at(1, 11))))
	require.NoError(t, repo.Insert(ctx, newBooking("E2", m1, at(1, 9), at(1, 10))))

	got, err := repo.FindOverlapping(ctx, OverlapFilter{Employee: "E1", Start: at(1, 10), End: at(1, 12)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "M2", got[0].Source.Name)

	got, err = repo.FindOverlapping(ctx, OverlapFilter{Employee: "E1", Start: at(1, 8), End: at(1, 12), ExcludeSource: &m2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "M1", got[0].Source.Name)
}

func TestGormEmployeeBookingRepository_UpdateAndDelete(t *testing.T) {
	db := gormtest.Open(t, &EmployeeBookingRow{})
	repo := NewGormEmployeeBookingRepository(db)
	ctx := context.Background()
	g1 := model.NewSourceRef(model.SourceStudentGroup, "G1")

	b := newBooking("E1", g1, at(1, 9), at(1, 10))
	require.NoError(t, repo.Insert(ctx, b))
	require.NoError(t, repo.Insert(ctx, newBooking("E2", g1, at(8, 9), at(8, 10))))

	b.Location = "R2"
	b.ModifiedBy = "scheduler"
	require.NoError(t, repo.Update(ctx, b.ID, b))

	got, err := repo.FindBySource(ctx, g1, "E1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "R2", got[0].Location)
	assert.Equal(t, "scheduler", got[0].ModifiedBy)

	assert.ErrorIs(t, repo.Update(ctx, "missing", b), employeeerrors.ErrNotFound)

	within, err := repo.FindBySourceWithin(ctx, g1, at(1, 0), at(2, 0))
	require.NoError(t, err)
	assert.Len(t, within, 1)

	n, err := repo.DeleteBySource(ctx, g1, "E2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.DeleteByIDs(ctx, []string{b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := repo.FindBySource(ctx, g1, "")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestGormEmployeeBookingRepository_TransactionRollback(t *testing.T) {
	db := gormtest.Open(t, &EmployeeBookingRow{})
	repo := NewGormEmployeeBookingRepository(db)
	tm := gormdb.NewTransactionManager(db)
	ctx := context.Background()
	m1 := model.NewSourceRef(model.SourceMeeting, "M1")

	err := tm.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Insert(ctx, newBooking("E1", m1, at(1, 9), at(1, 10))); err != nil {
			return err
		}
		return employeeerrors.ErrInvalidTimeRange
	})
	require.Error(t, err)

	got, err := repo.FindBySource(ctx, m1, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
