package repository

import (
	"context"
	"errors"

	"taskboard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BoardRepositoryInterface interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Owner(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

var _ BoardRepositoryInterface = (*BoardRepository)(nil)

type BoardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

func (r *BoardRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// Owner returns the id of the user owning the board.
func (r *BoardRepository) Owner(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var board model.Board
	err := r.db.WithContext(ctx).Select("id", "owner_id").Where("id = ?", id).First(&board).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrBoardNotFound
		}
		return uuid.Nil, err
	}
	return board.OwnerID, nil
}
