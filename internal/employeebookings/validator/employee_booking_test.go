package validator

import (
	"errors"
	"resledger/pkg/logger"
	"resledger/pkg/model"
	"strings"
	"testing"
	"time"
)

func newTestValidator() *EmployeeBookingValidator {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	return NewEmployeeBookingValidator(log)
}

func validBooking() *model.EmployeeBooking {
	from := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	return &model.EmployeeBooking{
		Employee:           "E1",
		From:               from,
		To:                 from.Add(time.Hour),
		Source:             model.NewSourceRef(model.SourceStudentGroup, "G1"),
		BookingType:        model.BookingTypeTeaching,
		BlocksAvailability: true,
		Location:           "R1",
	}
}

func TestEmployeeBookingValidator_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(b *model.EmployeeBooking)
		wantField string
	}{
		{
			name:   "valid teaching booking",
			mutate: func(b *model.EmployeeBooking) {},
		},
		{
			name:      "teaching without location",
			mutate:    func(b *model.EmployeeBooking) { b.Location = "" },
			wantField: "Location",
		},
		{
			name:   "meeting without location",
			mutate: func(b *model.EmployeeBooking) { b.BookingType = model.BookingTypeMeeting; b.Location = "" },
		},
		{
			name:      "missing employee",
			mutate:    func(b *model.EmployeeBooking) { b.Employee = "" },
			wantField: "Employee",
		},
		{
			name:      "missing source name",
			mutate:    func(b *model.EmployeeBooking) { b.Source.Name = "" },
			wantField: "Name",
		},
		{
			name:      "inverted window",
			mutate:    func(b *model.EmployeeBooking) { b.To = b.From.Add(-time.Minute) },
			wantField: "To",
		},
		{
			name:      "zero start",
			mutate:    func(b *model.EmployeeBooking) { b.From = time.Time{} },
			wantField: "From",
		},
	}

	v := newTestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBooking()
			tt.mutate(b)
			err := v.Validate(b)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on field %s, got %v", tt.wantField, verrs)
			}
		})
	}
}

func TestEmployeeBookingValidator_RequiredIfMessage(t *testing.T) {
	b := validBooking()
	b.Location = ""

	err := newTestValidator().Validate(b)
	if err == nil || !strings.Contains(err.Error(), "Location is required when BookingType is Teaching") {
		t.Errorf("unexpected message: %v", err)
	}
}
