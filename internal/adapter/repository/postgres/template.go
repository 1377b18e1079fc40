package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mailflow/mailflow/internal/domain/template"
)

// TemplateModel is the database DTO with gorm tags.
type TemplateModel struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Subject   string `gorm:"type:varchar(255);not null"`
	Body      string `gorm:"type:text;not null"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TemplateModel) TableName() string {
	return "email_templates"
}

type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *template.Template) error {
	model := toTemplateModel(tpl)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *TemplateRepository) Update(ctx context.Context, tpl *template.Template) error {
	model := toTemplateModel(tpl)
	result := r.db.WithContext(ctx).Model(&TemplateModel{}).
		Where("id = ?", tpl.ID).
		Updates(map[string]any{
			"name":       model.Name,
			"subject":    model.Subject,
			"body":       model.Body,
			"is_active":  model.IsActive,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&TemplateModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return template.ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, id int64) (*template.Template, error) {
	var model TemplateModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, template.ErrNotFound
		}
		return nil, err
	}
	return toTemplateDomain(model), nil
}

func (r *TemplateRepository) FindByName(ctx context.Context, name string) (*template.Template, error) {
	var model TemplateModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, template.ErrNotFound
		}
		return nil, err
	}
	return toTemplateDomain(model), nil
}

func (r *TemplateRepository) List(ctx context.Context) ([]*template.Template, error) {
	var models []TemplateModel
	if err := r.db.WithContext(ctx).Order("name asc").Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]*template.Template, 0, len(models))
	for _, model := range models {
		items = append(items, toTemplateDomain(model))
	}
	return items, nil
}

// Mappers

func toTemplateDomain(m TemplateModel) *template.Template {
	return &template.Template{
		ID:        m.ID,
		Name:      m.Name,
		Subject:   m.Subject,
		Body:      m.Body,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toTemplateModel(d *template.Template) TemplateModel {
	return TemplateModel{
		ID:        d.ID,
		Name:      d.Name,
		Subject:   d.Subject,
		Body:      d.Body,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
