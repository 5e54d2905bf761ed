package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequestRepository interface {
	Create(ctx context.Context, req *model.RentalRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RentalRequest, error)
	// FindByIDForUpdate loads the request row under a SELECT ... FOR UPDATE
	// lock. Only meaningful inside a transaction started via TransactionManager.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RentalRequest, error)
	// UpdateStatusIf applies updates only where the row still has status=from
	// and returns the number of rows matched. Zero rows means another actor
	// got there first.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from model.RequestStatus, updates map[string]interface{}) (int64, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, page, limit int) ([]model.RentalRequest, int64, error)
	List(ctx context.Context, status model.RequestStatus, page, limit int) ([]model.RentalRequest, int64, error)
}

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.RentalRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RentalRequest, error) {
	var req model.RentalRequest
	if err := GetDB(ctx, r.db).Preload("Vehicle").First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.RentalRequest, error) {
	var req model.RentalRequest
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from model.RequestStatus, updates map[string]interface{}) (int64, error) {
	res := GetDB(ctx, r.db).
		Model(&model.RentalRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *requestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID, page, limit int) ([]model.RentalRequest, int64, error) {
	var requests []model.RentalRequest
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.RentalRequest{}).Where("requester_id = ?", requesterID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Vehicle").
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) List(ctx context.Context, status model.RequestStatus, page, limit int) ([]model.RentalRequest, int64, error) {
	var requests []model.RentalRequest
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.RentalRequest{})
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
	if err := fetchQuery.Order("created_at DESC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
