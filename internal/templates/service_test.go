package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/domain/template"
	"github.com/mailflow/mailflow/pkg/snowflake"
)

// mockTemplateRepository is a simple in-memory repository for testing
type mockTemplateRepository struct {
	templates map[int64]*template.Template
}

func newMockTemplateRepository() *mockTemplateRepository {
	return &mockTemplateRepository{templates: make(map[int64]*template.Template)}
}

func (m *mockTemplateRepository) Create(ctx context.Context, tpl *template.Template) error {
	m.templates[tpl.ID] = tpl
	return nil
}

func (m *mockTemplateRepository) Update(ctx context.Context, tpl *template.Template) error {
	if _, ok := m.templates[tpl.ID]; !ok {
		return template.ErrNotFound
	}
	m.templates[tpl.ID] = tpl
	return nil
}

func (m *mockTemplateRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.templates[id]; !ok {
		return template.ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

func (m *mockTemplateRepository) FindByID(ctx context.Context, id int64) (*template.Template, error) {
	tpl, ok := m.templates[id]
	if !ok {
		return nil, template.ErrNotFound
	}
	return tpl, nil
}

func (m *mockTemplateRepository) FindByName(ctx context.Context, name string) (*template.Template, error) {
	for _, tpl := range m.templates {
		if tpl.Name == name {
			return tpl, nil
		}
	}
	return nil, template.ErrNotFound
}

func (m *mockTemplateRepository) List(ctx context.Context) ([]*template.Template, error) {
	var result []*template.Template
	for _, tpl := range m.templates {
		result = append(result, tpl)
	}
	return result, nil
}

func newTestService(t *testing.T) (*Service, *mockTemplateRepository) {
	t.Helper()
	node, err := snowflake.NewNode()
	require.NoError(t, err)
	repo := newMockTemplateRepository()
	return NewService(repo, node, zap.NewNop()), repo
}

func TestServiceCreate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	tpl, err := svc.Create(ctx, CreateInput{Name: " welcome ", Subject: "Hi {recipient.name}", Body: "<p>Hi</p>"})
	require.NoError(t, err)

	assert.NotZero(t, tpl.ID)
	assert.Equal(t, "welcome", tpl.Name)
	assert.True(t, tpl.IsActive)
	assert.Len(t, repo.templates, 1)
}

func TestServiceCreate_DuplicateName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "welcome", Subject: "s", Body: "b"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Name: "welcome", Subject: "s2", Body: "b2"})
	assert.ErrorIs(t, err, template.ErrDuplicateName)
}

func TestServiceUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tpl, err := svc.Create(ctx, CreateInput{Name: "welcome", Subject: "s", Body: "b"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, tpl.ID, UpdateInput{Name: "welcome", Subject: "new subject", Body: "b", IsActive: false})
	require.NoError(t, err)
	assert.Equal(t, "new subject", updated.Subject)
	assert.False(t, updated.IsActive)
}

func TestServiceUpdate_NameCollision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "a", Subject: "s", Body: "b"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{Name: "b", Subject: "s", Body: "b"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, second.ID, UpdateInput{Name: "a", Subject: "s", Body: "b", IsActive: true})
	assert.ErrorIs(t, err, template.ErrDuplicateName)
}

func TestServiceDelete_Unknown(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), 12345)
	assert.ErrorIs(t, err, template.ErrNotFound)
}
