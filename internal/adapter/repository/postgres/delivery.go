package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mailflow/mailflow/internal/domain/delivery"
)

// DeliveryLogModel is the database DTO with gorm tags.
type DeliveryLogModel struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"`
	RecipientID   int64  `gorm:"not null;index"`
	TemplateID    int64  `gorm:"not null"`
	Subject       string `gorm:"type:varchar(255);not null"`
	Body          string `gorm:"type:text;not null"`
	Status        string `gorm:"type:varchar(20);not null;index"`
	AttemptCount  int    `gorm:"not null;default:0"`
	MaxAttempts   int    `gorm:"not null;default:3"`
	ErrorMessage  *string
	SentAt        *time.Time
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (DeliveryLogModel) TableName() string {
	return "delivery_logs"
}

// DeliveryRepository persists delivery logs. Every status mutation is a
// guarded single-row update so concurrent duplicate deliveries cannot
// regress a terminal state.
type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(ctx context.Context, log *delivery.Log) error {
	model := toDeliveryModel(log)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *DeliveryRepository) FindByID(ctx context.Context, id string) (*delivery.Log, error) {
	var model DeliveryLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, delivery.ErrNotFound
		}
		return nil, err
	}
	return toDeliveryDomain(model), nil
}

func (r *DeliveryRepository) ListByStatus(ctx context.Context, status delivery.Status, limit int) ([]*delivery.Log, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []DeliveryLogModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return toDeliveryDomainList(models), nil
}

func (r *DeliveryRepository) ListByRecipient(ctx context.Context, recipientID int64) ([]*delivery.Log, error) {
	var models []DeliveryLogModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at desc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toDeliveryDomainList(models), nil
}

func (r *DeliveryRepository) ListOverdueRetries(ctx context.Context, cutoff time.Time, limit int) ([]*delivery.Log, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?", string(delivery.StatusRetrying), cutoff).
		Order("next_attempt_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []DeliveryLogModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return toDeliveryDomainList(models), nil
}

// BeginAttempt claims the log for one attempt. The WHERE clause names the
// claimable states, so a log another worker already finished comes back
// (nil, nil) instead of being re-attempted.
func (r *DeliveryRepository) BeginAttempt(ctx context.Context, id string) (*delivery.Log, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&DeliveryLogModel{}).
		Where("id = ? AND status IN ?", id, []string{
			string(delivery.StatusPending),
			string(delivery.StatusRetrying),
			string(delivery.StatusProcessing),
		}).
		Updates(map[string]any{
			"status":        string(delivery.StatusProcessing),
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Either absent or terminal; distinguish for the caller.
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *DeliveryRepository) MarkSent(ctx context.Context, log *delivery.Log) error {
	result := r.db.WithContext(ctx).Model(&DeliveryLogModel{}).
		Where("id = ? AND status = ?", log.ID, string(delivery.StatusProcessing)).
		Updates(map[string]any{
			"status":          string(delivery.StatusSent),
			"sent_at":         log.SentAt,
			"error_message":   nil,
			"next_attempt_at": nil,
			"updated_at":      log.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// Already Sent means a duplicate delivery landed; that is a no-op, not
	// an error. Anything else is a real conflict.
	current, err := r.FindByID(ctx, log.ID)
	if err != nil {
		return err
	}
	if current.Status == delivery.StatusSent {
		return nil
	}
	return fmt.Errorf("mark sent: log %s moved to %s concurrently", log.ID, current.Status)
}

func (r *DeliveryRepository) MarkRetrying(ctx context.Context, log *delivery.Log) error {
	return r.guardedTransition(ctx, log, delivery.StatusRetrying, map[string]any{
		"status":          string(delivery.StatusRetrying),
		"error_message":   log.ErrorMessage,
		"next_attempt_at": log.NextAttemptAt,
		"updated_at":      log.UpdatedAt,
	})
}

func (r *DeliveryRepository) MarkFailed(ctx context.Context, log *delivery.Log) error {
	return r.guardedTransition(ctx, log, delivery.StatusFailed, map[string]any{
		"status":          string(delivery.StatusFailed),
		"error_message":   log.ErrorMessage,
		"next_attempt_at": nil,
		"updated_at":      log.UpdatedAt,
	})
}

func (r *DeliveryRepository) guardedTransition(ctx context.Context, log *delivery.Log, next delivery.Status, updates map[string]any) error {
	result := r.db.WithContext(ctx).Model(&DeliveryLogModel{}).
		Where("id = ? AND status = ? AND attempt_count = ?", log.ID, string(delivery.StatusProcessing), log.AttemptCount).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("transition to %s: log %s changed concurrently", next, log.ID)
	}
	return nil
}

func (r *DeliveryRepository) Reset(ctx context.Context, log *delivery.Log) error {
	result := r.db.WithContext(ctx).Model(&DeliveryLogModel{}).
		Where("id = ?", log.ID).
		Updates(map[string]any{
			"status":          string(delivery.StatusPending),
			"error_message":   nil,
			"next_attempt_at": nil,
			"updated_at":      log.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return delivery.ErrNotFound
	}
	return nil
}

func (r *DeliveryRepository) CountByStatus(ctx context.Context) (*delivery.Statistics, error) {
	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	err := r.db.WithContext(ctx).Model(&DeliveryLogModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &delivery.Statistics{}
	for _, item := range rows {
		switch delivery.Status(item.Status) {
		case delivery.StatusPending:
			stats.Pending = item.Count
		case delivery.StatusProcessing:
			stats.Processing = item.Count
		case delivery.StatusSent:
			stats.Sent = item.Count
		case delivery.StatusRetrying:
			stats.Retrying = item.Count
		case delivery.StatusFailed:
			stats.Failed = item.Count
		}
		stats.Total += item.Count
	}
	return stats, nil
}

// Mappers

func toDeliveryDomain(m DeliveryLogModel) *delivery.Log {
	log := &delivery.Log{
		ID:            m.ID,
		RecipientID:   m.RecipientID,
		TemplateID:    m.TemplateID,
		Subject:       m.Subject,
		Body:          m.Body,
		Status:        delivery.Status(m.Status),
		AttemptCount:  m.AttemptCount,
		MaxAttempts:   m.MaxAttempts,
		SentAt:        m.SentAt,
		NextAttemptAt: m.NextAttemptAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.ErrorMessage != nil {
		log.ErrorMessage = *m.ErrorMessage
	}
	return log
}

func toDeliveryDomainList(models []DeliveryLogModel) []*delivery.Log {
	items := make([]*delivery.Log, 0, len(models))
	for _, model := range models {
		items = append(items, toDeliveryDomain(model))
	}
	return items
}

func toDeliveryModel(d *delivery.Log) DeliveryLogModel {
	model := DeliveryLogModel{
		ID:            d.ID,
		RecipientID:   d.RecipientID,
		TemplateID:    d.TemplateID,
		Subject:       d.Subject,
		Body:          d.Body,
		Status:        string(d.Status),
		AttemptCount:  d.AttemptCount,
		MaxAttempts:   d.MaxAttempts,
		SentAt:        d.SentAt,
		NextAttemptAt: d.NextAttemptAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.ErrorMessage != "" {
		msg := d.ErrorMessage
		model.ErrorMessage = &msg
	}
	return model
}
