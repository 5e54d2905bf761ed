package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/service"
)

func (f *fixture) approvedRental(t *testing.T) (*model.Vehicle, uuid.UUID) {
	t.Helper()
	vehicle := f.vehicles.add(model.Vehicle{PlateNumber: "51A-123.45"})
	req := f.seedPendingRequest(t, vehicle.ID, "2024-01-10", "2024-01-12")
	result, err := f.approvals.Approve(context.Background(), req.ID, uuid.New(), "")
	require.NoError(t, err)
	return vehicle, uuid.MustParse(result.Rental.ID)
}

func TestConfirmPickupFlipsPossession(t *testing.T) {
	f := newFixture()
	vehicle, rentalID := f.approvedRental(t)

	resp, err := f.rentalSv.ConfirmPickup(context.Background(), rentalID, uuid.New(), service.PickupDTO{
		StartMileage: "10000",
	})
	require.NoError(t, err)
	require.Equal(t, string(model.RentalStatusInProgress), resp.Status)
	require.NotNil(t, resp.StartMileage)
	require.Equal(t, "10000", *resp.StartMileage)
	require.NotNil(t, resp.ActualStartTime)

	v, err := f.vehicles.FindByID(context.Background(), vehicle.ID)
	require.NoError(t, err)
	require.Equal(t, model.VehicleStatusRented, v.Status)
}

func TestConfirmPickupRequiresConfirmedRental(t *testing.T) {
	f := newFixture()
	_, rentalID := f.approvedRental(t)

	_, err := f.rentalSv.ConfirmPickup(context.Background(), rentalID, uuid.New(), service.PickupDTO{})
	require.NoError(t, err)

	// Second pickup hits an in-progress rental.
	_, err = f.rentalSv.ConfirmPickup(context.Background(), rentalID, uuid.New(), service.PickupDTO{})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestConfirmPickupMissingRental(t *testing.T) {
	f := newFixture()
	_, err := f.rentalSv.ConfirmPickup(context.Background(), uuid.New(), uuid.New(), service.PickupDTO{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConfirmPickupRejectsBadMileage(t *testing.T) {
	f := newFixture()
	_, rentalID := f.approvedRental(t)

	_, err := f.rentalSv.ConfirmPickup(context.Background(), rentalID, uuid.New(), service.PickupDTO{
		StartMileage: "-10",
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConfirmReturnComputesDistance(t *testing.T) {
	f := newFixture()
	vehicle, rentalID := f.approvedRental(t)

	_, err := f.rentalSv.ConfirmPickup(context.Background(), rentalID, uuid.New(), service.PickupDTO{
		StartMileage: "10000",
	})
	require.NoError(t, err)

	checklist := json.RawMessage(`{"fuel":"full","damage":"none"}`)
	resp, err := f.rentalSv.ConfirmReturn(context.Background(), rentalID, uuid.New(), service.ReturnDTO{
		EndMileage:      "10250",
		ReturnChecklist: checklist,
	})
	require.NoError(t, err)
	require.Equal(t, string(model.RentalStatusCompleted), resp.Status)
	require.NotNil(t, resp.TotalMileage)
	require.Equal(t, "250", *resp.TotalMileage)
	require.JSONEq(t, string(checklist), resp.ReturnChecklist)

	// Return hands possession back and rolls the odometer forward.
	v, err := f.vehicles.FindByID(context.Background(), vehicle.ID)
	require.NoError(t, err)
	require.Equal(t, model.VehicleStatusAvailable, v.Status)
	require.Equal(t, "10250", v.CurrentMileage.String())

	require.Equal(t, []string{
		model.ActionApproveRequest,
		model.ActionConfirmPickup,
		model.ActionConfirmReturn,
	}, f.audits.actions())
}

func TestConfirmReturnRejectsRollback(t *testing.T) {
	f := newFixture()
	_, rentalID := f.approvedRental(t)

	_, err := f.rentalSv.ConfirmPickup(context.Background(), rentalID, uuid.New(), service.PickupDTO{
		StartMileage: "10000",
	})
	require.NoError(t, err)

	_, err = f.rentalSv.ConfirmReturn(context.Background(), rentalID, uuid.New(), service.ReturnDTO{
		EndMileage: "9990",
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestConfirmReturnRequiresInProgress(t *testing.T) {
	f := newFixture()
	_, rentalID := f.approvedRental(t)

	// Return before pickup.
	_, err := f.rentalSv.ConfirmReturn(context.Background(), rentalID, uuid.New(), service.ReturnDTO{})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.rentalSv.ConfirmPickup(context.Background(), rentalID, uuid.New(), service.PickupDTO{})
	require.NoError(t, err)
	_, err = f.rentalSv.ConfirmReturn(context.Background(), rentalID, uuid.New(), service.ReturnDTO{})
	require.NoError(t, err)

	// Second return hits a completed rental.
	_, err = f.rentalSv.ConfirmReturn(context.Background(), rentalID, uuid.New(), service.ReturnDTO{})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestConfirmReturnWithoutOdometer(t *testing.T) {
	f := newFixture()
	_, rentalID := f.approvedRental(t)

	_, err := f.rentalSv.ConfirmPickup(context.Background(), rentalID, uuid.New(), service.PickupDTO{})
	require.NoError(t, err)

	resp, err := f.rentalSv.ConfirmReturn(context.Background(), rentalID, uuid.New(), service.ReturnDTO{})
	require.NoError(t, err)
	require.Equal(t, string(model.RentalStatusCompleted), resp.Status)
	require.Nil(t, resp.TotalMileage)
}
