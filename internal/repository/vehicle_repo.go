package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VehicleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error)
	Updates(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	// UpdateStatusIf flips possession status only when the vehicle still has
	// status=from; returns rows matched. Used by cancellation to release a
	// vehicle only if it had actually been handed out.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to model.VehicleStatus) (int64, error)
	List(ctx context.Context, page, limit int) ([]model.Vehicle, int64, error)
	// ListAvailable returns non-deleted vehicles whose possession status is
	// AVAILABLE and which have no active rental overlapping the inclusive
	// date range. Advisory only — the authoritative check runs inside the
	// approval transaction.
	ListAvailable(ctx context.Context, startDate, endDate time.Time, vehicleType string) ([]model.Vehicle, error)
}

type vehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := GetDB(ctx, r.db).First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *vehicleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&vehicle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *vehicleRepository) Updates(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return GetDB(ctx, r.db).Model(&model.Vehicle{}).Where("id = ?", id).Updates(updates).Error
}

func (r *vehicleRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to model.VehicleStatus) (int64, error) {
	res := GetDB(ctx, r.db).
		Model(&model.Vehicle{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *vehicleRepository) List(ctx context.Context, page, limit int) ([]model.Vehicle, int64, error) {
	var vehicles []model.Vehicle
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Vehicle{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("plate_number ASC").Offset(offset).Limit(limit).Find(&vehicles).Error; err != nil {
		return nil, 0, err
	}

	return vehicles, total, nil
}

func (r *vehicleRepository) ListAvailable(ctx context.Context, startDate, endDate time.Time, vehicleType string) ([]model.Vehicle, error) {
	db := GetDB(ctx, r.db)

	conflicting := db.Model(&model.Rental{}).
		Select("vehicle_id").
		Where("status IN ?", model.ActiveRentalStatuses).
		Where("start_date <= ? AND end_date >= ?", endDate, startDate)

	query := db.
		Where("status = ?", model.VehicleStatusAvailable).
		Where("id NOT IN (?)", conflicting)
	if vehicleType != "" {
		query = query.Where("vehicle_type = ?", vehicleType)
	}

	var vehicles []model.Vehicle
	if err := query.Order("plate_number ASC").Find(&vehicles).Error; err != nil {
		return nil, err
	}
	return vehicles, nil
}
