package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RentalRepository interface {
	Create(ctx context.Context, rental *model.Rental) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Rental, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Rental, error)
	FindByRequestID(ctx context.Context, requestID uuid.UUID) (*model.Rental, error)
	FindByRequestIDForUpdate(ctx context.Context, requestID uuid.UUID) (*model.Rental, error)
	// UpdateStatusIf applies updates only where the row still has status=from
	// and returns the number of rows matched.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from model.RentalStatus, updates map[string]interface{}) (int64, error)
	// CountConflicts counts active rentals on the vehicle whose inclusive
	// date range overlaps [startDate, endDate]. Run inside the approval
	// transaction this is the authoritative check; outside it is advisory.
	CountConflicts(ctx context.Context, vehicleID uuid.UUID, startDate, endDate time.Time, excludeRentalID *uuid.UUID) (int64, error)
	ListByRenter(ctx context.Context, renterID uuid.UUID, page, limit int) ([]model.Rental, int64, error)
	List(ctx context.Context, status model.RentalStatus, page, limit int) ([]model.Rental, int64, error)
	// ListStartingOn returns confirmed rentals whose start date falls on the
	// given day. Used by the pickup-reminder sweep.
	ListStartingOn(ctx context.Context, day time.Time) ([]model.Rental, error)
	// ListOverdue returns in-progress rentals whose end date has passed.
	ListOverdue(ctx context.Context, asOf time.Time) ([]model.Rental, error)
}

type rentalRepository struct {
	db *gorm.DB
}

func NewRentalRepository(db *gorm.DB) RentalRepository {
	return &rentalRepository{db: db}
}

func (r *rentalRepository) Create(ctx context.Context, rental *model.Rental) error {
	return GetDB(ctx, r.db).Create(rental).Error
}

func (r *rentalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Rental, error) {
	var rental model.Rental
	if err := GetDB(ctx, r.db).Preload("Vehicle").First(&rental, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *rentalRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Rental, error) {
	var rental model.Rental
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rental, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *rentalRepository) FindByRequestID(ctx context.Context, requestID uuid.UUID) (*model.Rental, error) {
	var rental model.Rental
	if err := GetDB(ctx, r.db).First(&rental, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *rentalRepository) FindByRequestIDForUpdate(ctx context.Context, requestID uuid.UUID) (*model.Rental, error) {
	var rental model.Rental
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rental, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &rental, nil
}

func (r *rentalRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from model.RentalStatus, updates map[string]interface{}) (int64, error) {
	res := GetDB(ctx, r.db).
		Model(&model.Rental{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *rentalRepository) CountConflicts(ctx context.Context, vehicleID uuid.UUID, startDate, endDate time.Time, excludeRentalID *uuid.UUID) (int64, error) {
	var count int64
	// Inclusive overlap: existing.start <= new.end AND existing.end >= new.start
	query := GetDB(ctx, r.db).
		Model(&model.Rental{}).
		Where("vehicle_id = ?", vehicleID).
		Where("status IN ?", model.ActiveRentalStatuses).
		Where("start_date <= ? AND end_date >= ?", endDate, startDate)
	if excludeRentalID != nil {
		query = query.Where("id <> ?", *excludeRentalID)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *rentalRepository) ListByRenter(ctx context.Context, renterID uuid.UUID, page, limit int) ([]model.Rental, int64, error) {
	var rentals []model.Rental
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Rental{}).Where("renter_id = ?", renterID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Vehicle").
		Where("renter_id = ?", renterID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&rentals).Error; err != nil {
		return nil, 0, err
	}

	return rentals, total, nil
}

func (r *rentalRepository) List(ctx context.Context, status model.RentalStatus, page, limit int) ([]model.Rental, int64, error) {
	var rentals []model.Rental
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Rental{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Vehicle")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rentals).Error; err != nil {
		return nil, 0, err
	}

	return rentals, total, nil
}

func (r *rentalRepository) ListStartingOn(ctx context.Context, day time.Time) ([]model.Rental, error) {
	var rentals []model.Rental
	if err := GetDB(ctx, r.db).Preload("Vehicle").
		Where("status = ? AND start_date = ?", model.RentalStatusConfirmed, day.Format("2006-01-02")).
		Find(&rentals).Error; err != nil {
		return nil, err
	}
	return rentals, nil
}

func (r *rentalRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]model.Rental, error) {
	var rentals []model.Rental
	if err := GetDB(ctx, r.db).Preload("Vehicle").
		Where("status = ? AND end_date < ?", model.RentalStatusInProgress, asOf.Format("2006-01-02")).
		Find(&rentals).Error; err != nil {
		return nil, err
	}
	return rentals, nil
}
