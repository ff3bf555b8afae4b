package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kamistore/backend/internal/models"
)

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
)

type Service struct {
	DB *gorm.DB
}

// NewQRValue builds the human-displayable order code, QR- plus 8 uppercase
// hex characters.
func NewQRValue() string {
	return "QR-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *Service) Create(ctx context.Context, userID uint, items []models.OrderItem, roomNumber string) (*models.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items are required", ErrValidation)
	}

	roomNumber = strings.TrimSpace(roomNumber)
	if roomNumber == "" {
		return nil, fmt.Errorf("%w: room number is required", ErrValidation)
	}

	order := &models.Order{
		UserID:     userID,
		Items:      items,
		QRValue:    NewQRValue(),
		RoomNumber: roomNumber,
		Status:     models.OrderStatusPlaced,
	}
	if err := s.DB.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// Get returns the order only when it belongs to userID. A foreign or missing
// id is the same ErrNotFound, so ownership is never disclosed.
func (s *Service) Get(ctx context.Context, userID, id uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Update applies a partial update of items and/or status. With neither field
// set it is a no-op that still returns the unchanged row.
func (s *Service) Update(ctx context.Context, userID, id uint, items []models.OrderItem, status *string) (*models.Order, error) {
	order, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if items != nil {
		if err := s.DB.WithContext(ctx).Model(order).Update("items", items).Error; err != nil {
			return nil, err
		}
	}
	if status != nil {
		if err := s.DB.WithContext(ctx).Model(order).Update("status", *status).Error; err != nil {
			return nil, err
		}
	}

	return s.Get(ctx, userID, id)
}

// Cancel soft-deletes the order by moving it to cancelled. Cancelling an
// already-cancelled order succeeds and leaves it cancelled.
func (s *Service) Cancel(ctx context.Context, userID, id uint) error {
	order, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Model(order).
		Update("status", models.OrderStatusCancelled).Error
}
