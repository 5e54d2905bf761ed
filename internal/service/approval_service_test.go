package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/service"
)

type fixture struct {
	requests *memRequestRepo
	rentals  *memRentalRepo
	vehicles *memVehicleRepo
	audits   *memAuditRepo
	notifier *recordNotifier

	approvals service.ApprovalService
	requestSv service.RequestService
	rentalSv  service.RentalService
}

func newFixture() *fixture {
	requests := newMemRequestRepo()
	rentals := newMemRentalRepo()
	vehicles := newMemVehicleRepo(rentals)
	audits := &memAuditRepo{}
	notifier := &recordNotifier{}
	tx := passTxManager{}

	return &fixture{
		requests:  requests,
		rentals:   rentals,
		vehicles:  vehicles,
		audits:    audits,
		notifier:  notifier,
		approvals: service.NewApprovalService(requests, rentals, vehicles, audits, tx, notifier),
		requestSv: service.NewRequestService(requests, rentals, vehicles, audits, tx, notifier),
		rentalSv:  service.NewRentalService(rentals, vehicles, audits, tx, notifier),
	}
}

func (f *fixture) seedPendingRequest(t *testing.T, vehicleID uuid.UUID, start, end string) *model.RentalRequest {
	t.Helper()
	req := &model.RentalRequest{
		RequesterID: uuid.New(),
		VehicleID:   &vehicleID,
		StartDate:   date(start),
		EndDate:     date(end),
		Purpose:     "site visit",
		Status:      model.RequestStatusPending,
	}
	require.NoError(t, f.requests.Create(context.Background(), req))
	return req
}

func TestApproveCreatesConfirmedRental(t *testing.T) {
	f := newFixture()
	vehicle := f.vehicles.add(model.Vehicle{PlateNumber: "51A-123.45", VehicleType: "SEDAN"})
	req := f.seedPendingRequest(t, vehicle.ID, "2024-01-10", "2024-01-12")
	reviewer := uuid.New()

	result, err := f.approvals.Approve(context.Background(), req.ID, reviewer, "ok for the site visit")
	require.NoError(t, err)
	require.Equal(t, string(model.RequestStatusApproved), result.Request.Status)
	require.Equal(t, string(model.RentalStatusConfirmed), result.Rental.Status)
	require.Equal(t, req.RequesterID.String(), result.Rental.RenterID)

	stored, err := f.requests.FindByID(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, model.RequestStatusApproved, stored.Status)
	require.NotNil(t, stored.ReviewerID)
	require.Equal(t, reviewer, *stored.ReviewerID)

	// Approval blocks the calendar but never touches possession: the keys
	// have not left custody yet.
	v, err := f.vehicles.FindByID(context.Background(), vehicle.ID)
	require.NoError(t, err)
	require.Equal(t, model.VehicleStatusAvailable, v.Status)

	require.Equal(t, []string{model.ActionApproveRequest}, f.audits.actions())
}

func TestApproveConflictLeavesRequestUntouched(t *testing.T) {
	f := newFixture()
	vehicle := f.vehicles.add(model.Vehicle{PlateNumber: "51A-123.45"})

	first := f.seedPendingRequest(t, vehicle.ID, "2024-01-10", "2024-01-12")
	_, err := f.approvals.Approve(context.Background(), first.ID, uuid.New(), "")
	require.NoError(t, err)

	second := f.seedPendingRequest(t, vehicle.ID, "2024-01-11", "2024-01-13")
	_, err = f.approvals.Approve(context.Background(), second.ID, uuid.New(), "")
	require.ErrorIs(t, err, apperr.ErrVehicleConflict)

	// The losing request stays pending and no rental was created for it.
	stored, err := f.requests.FindByID(context.Background(), second.ID)
	require.NoError(t, err)
	require.Equal(t, model.RequestStatusPending, stored.Status)
	_, err = f.rentals.FindByRequestID(context.Background(), second.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestApproveBoundaryDates(t *testing.T) {
	f := newFixture()
	vehicle := f.vehicles.add(model.Vehicle{PlateNumber: "51A-123.45"})

	booked := f.seedPendingRequest(t, vehicle.ID, "2024-01-10", "2024-01-12")
	_, err := f.approvals.Approve(context.Background(), booked.ID, uuid.New(), "")
	require.NoError(t, err)

	// Shared boundary date conflicts: scheduling is date-only, both ends
	// inclusive.
	touching := f.seedPendingRequest(t, vehicle.ID, "2024-01-12", "2024-01-14")
	_, err = f.approvals.Approve(context.Background(), touching.ID, uuid.New(), "")
	require.ErrorIs(t, err, apperr.ErrVehicleConflict)

	// The day after the booked range is free.
	adjacent := f.seedPendingRequest(t, vehicle.ID, "2024-01-13", "2024-01-15")
	_, err = f.approvals.Approve(context.Background(), adjacent.ID, uuid.New(), "")
	require.NoError(t, err)
}

func TestApproveRequiresBoundVehicle(t *testing.T) {
	f := newFixture()
	req := &model.RentalRequest{
		RequesterID: uuid.New(),
		StartDate:   date("2024-01-10"),
		EndDate:     date("2024-01-12"),
		Purpose:     "unassigned",
		Status:      model.RequestStatusPending,
	}
	require.NoError(t, f.requests.Create(context.Background(), req))

	_, err := f.approvals.Approve(context.Background(), req.ID, uuid.New(), "")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestApproveResolvedRequestIsStale(t *testing.T) {
	f := newFixture()
	vehicle := f.vehicles.add(model.Vehicle{PlateNumber: "51A-123.45"})
	req := f.seedPendingRequest(t, vehicle.ID, "2024-01-10", "2024-01-12")

	_, err := f.approvals.Reject(context.Background(), req.ID, uuid.New(), "no budget")
	require.NoError(t, err)

	_, err = f.approvals.Approve(context.Background(), req.ID, uuid.New(), "")
	require.ErrorIs(t, err, apperr.ErrStaleState)
}

func TestApproveMissingRequest(t *testing.T) {
	f := newFixture()
	_, err := f.approvals.Approve(context.Background(), uuid.New(), uuid.New(), "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApproveSoftDeletedVehicle(t *testing.T) {
	f := newFixture()
	vehicle := f.vehicles.add(model.Vehicle{
		PlateNumber: "51A-123.45",
		DeletedAt:   gorm.DeletedAt{Time: time.Now(), Valid: true},
	})
	req := f.seedPendingRequest(t, vehicle.ID, "2024-01-10", "2024-01-12")

	_, err := f.approvals.Approve(context.Background(), req.ID, uuid.New(), "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRejectRecordsReviewer(t *testing.T) {
	f := newFixture()
	vehicle := f.vehicles.add(model.Vehicle{PlateNumber: "51A-123.45"})
	req := f.seedPendingRequest(t, vehicle.ID, "2024-01-10", "2024-01-12")
	reviewer := uuid.New()

	resp, err := f.approvals.Reject(context.Background(), req.ID, reviewer, "vehicle needed elsewhere")
	require.NoError(t, err)
	require.Equal(t, string(model.RequestStatusRejected), resp.Status)
	require.Equal(t, "vehicle needed elsewhere", resp.ReviewComment)
	require.NotNil(t, resp.ReviewerID)
	require.Equal(t, reviewer.String(), *resp.ReviewerID)
	require.Equal(t, []string{model.ActionRejectRequest}, f.audits.actions())
}

func TestConcurrentRejectsOnlyOneWins(t *testing.T) {
	f := newFixture()
	vehicle := f.vehicles.add(model.Vehicle{PlateNumber: "51A-123.45"})
	req := f.seedPendingRequest(t, vehicle.ID, "2024-01-10", "2024-01-12")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.approvals.Reject(context.Background(), req.ID, uuid.New(), "duplicate review")
		}(i)
	}
	wg.Wait()

	var ok, stale int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrStaleState):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, stale)
}
