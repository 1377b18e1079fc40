package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/template"
	"github.com/mailflow/mailflow/pkg/snowflake"
)

// Service covers template CRUD: pure data validation over the store.
type Service struct {
	repo   template.Repository
	node   *snowflake.Node
	logger *zap.Logger
}

func NewService(repo template.Repository, node *snowflake.Node, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		node:   node,
		logger: logger.Named("templates"),
	}
}

// CreateInput carries the fields callers may set.
type CreateInput struct {
	Name    string `json:"name" binding:"required"`
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*template.Template, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}

	existing, err := s.repo.FindByName(ctx, name)
	if err != nil && !errors.Is(err, template.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, template.ErrDuplicateName
	}

	tpl := template.New(s.node.GenerateID(), name, input.Subject, input.Body)
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, err
	}

	s.logger.Info("template_created",
		zap.Int64("template_id", tpl.ID),
		zap.String("name", tpl.Name),
	)
	return tpl, nil
}

// UpdateInput carries the mutable fields.
type UpdateInput struct {
	Name     string `json:"name" binding:"required"`
	Subject  string `json:"subject" binding:"required"`
	Body     string `json:"body" binding:"required"`
	IsActive bool   `json:"is_active"`
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (*template.Template, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	other, err := s.repo.FindByName(ctx, name)
	if err != nil && !errors.Is(err, template.ErrNotFound) {
		return nil, err
	}
	if other != nil && other.ID != id {
		return nil, template.ErrDuplicateName
	}

	tpl.Name = name
	tpl.Subject = input.Subject
	tpl.Body = input.Body
	tpl.IsActive = input.IsActive
	tpl.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*template.Template, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByName(ctx context.Context, name string) (*template.Template, error) {
	return s.repo.FindByName(ctx, name)
}

func (s *Service) List(ctx context.Context) ([]*template.Template, error) {
	return s.repo.List(ctx)
}
