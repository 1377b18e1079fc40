package recipients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/recipient"
	"github.com/mailflow/mailflow/pkg/snowflake"
)

// Service covers recipient CRUD: pure data validation over the store.
type Service struct {
	repo   recipient.Repository
	node   *snowflake.Node
	logger *zap.Logger
}

func NewService(repo recipient.Repository, node *snowflake.Node, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		node:   node,
		logger: logger.Named("recipients"),
	}
}

// CreateInput carries the fields callers may set.
type CreateInput struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code"`
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*recipient.Recipient, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("recipient email is required")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, recipient.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, recipient.ErrDuplicateEmail
	}

	rcp := recipient.New(s.node.GenerateID(), strings.TrimSpace(input.Name), email, strings.TrimSpace(input.Code))
	if err := s.repo.Create(ctx, rcp); err != nil {
		return nil, err
	}

	s.logger.Info("recipient_created",
		zap.Int64("recipient_id", rcp.ID),
		zap.String("email", rcp.Email),
	)
	return rcp, nil
}

// UpdateInput carries the mutable fields.
type UpdateInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Code     string `json:"code"`
	IsActive bool   `json:"is_active"`
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*recipient.Recipient, error) {
	rcp, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	other, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, recipient.ErrNotFound) {
		return nil, err
	}
	if other != nil && other.ID != id {
		return nil, recipient.ErrDuplicateEmail
	}

	rcp.Name = strings.TrimSpace(input.Name)
	rcp.Email = email
	rcp.Code = strings.TrimSpace(input.Code)
	rcp.IsActive = input.IsActive
	rcp.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, rcp); err != nil {
		return nil, err
	}
	return rcp, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*recipient.Recipient, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*recipient.Recipient, error) {
	return s.repo.List(ctx)
}
