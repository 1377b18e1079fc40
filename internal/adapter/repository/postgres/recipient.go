package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mailflow/mailflow/internal/domain/recipient"
)

// RecipientModel is the database DTO with gorm tags.
type RecipientModel struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"type:varchar(100);not null"`
	Email     string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Code      string `gorm:"type:varchar(20)"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RecipientModel) TableName() string {
	return "recipients"
}

type RecipientRepository struct {
	db *gorm.DB
}

func NewRecipientRepository(db *gorm.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

func (r *RecipientRepository) Create(ctx context.Context, rcp *recipient.Recipient) error {
	model := toRecipientModel(rcp)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *RecipientRepository) Update(ctx context.Context, rcp *recipient.Recipient) error {
	model := toRecipientModel(rcp)
	result := r.db.WithContext(ctx).Model(&RecipientModel{}).
		Where("id = ?", rcp.ID).
		Updates(map[string]any{
			"name":       model.Name,
			"email":      model.Email,
			"code":       model.Code,
			"is_active":  model.IsActive,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return recipient.ErrNotFound
	}
	return nil
}

func (r *RecipientRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&RecipientModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return recipient.ErrNotFound
	}
	return nil
}

func (r *RecipientRepository) FindByID(ctx context.Context, id int64) (*recipient.Recipient, error) {
	var model RecipientModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recipient.ErrNotFound
		}
		return nil, err
	}
	return toRecipientDomain(model), nil
}

func (r *RecipientRepository) FindByEmail(ctx context.Context, email string) (*recipient.Recipient, error) {
	var model RecipientModel
	if err := r.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recipient.ErrNotFound
		}
		return nil, err
	}
	return toRecipientDomain(model), nil
}

func (r *RecipientRepository) List(ctx context.Context) ([]*recipient.Recipient, error) {
	var models []RecipientModel
	if err := r.db.WithContext(ctx).Order("name asc").Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]*recipient.Recipient, 0, len(models))
	for _, model := range models {
		items = append(items, toRecipientDomain(model))
	}
	return items, nil
}

// Mappers

func toRecipientDomain(m RecipientModel) *recipient.Recipient {
	return &recipient.Recipient{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Code:      m.Code,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toRecipientModel(d *recipient.Recipient) RecipientModel {
	return RecipientModel{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Code:      d.Code,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
