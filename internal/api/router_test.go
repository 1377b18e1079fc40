package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/domain/delivery"
	"github.com/mailflow/mailflow/internal/domain/recipient"
	"github.com/mailflow/mailflow/internal/domain/template"
	"github.com/mailflow/mailflow/internal/recipients"
	"github.com/mailflow/mailflow/internal/templates"
	"github.com/mailflow/mailflow/internal/usecase/dispatch"
	"github.com/mailflow/mailflow/pkg/snowflake"
	"github.com/mailflow/mailflow/pkg/testhelper"
)

// In-memory repositories backing the HTTP tests.

type apiTemplateRepo struct {
	items map[int64]*template.Template
}

func (m *apiTemplateRepo) Create(ctx context.Context, tpl *template.Template) error {
	m.items[tpl.ID] = tpl
	return nil
}
func (m *apiTemplateRepo) Update(ctx context.Context, tpl *template.Template) error {
	m.items[tpl.ID] = tpl
	return nil
}
func (m *apiTemplateRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return template.ErrNotFound
	}
	delete(m.items, id)
	return nil
}
func (m *apiTemplateRepo) FindByID(ctx context.Context, id int64) (*template.Template, error) {
	tpl, ok := m.items[id]
	if !ok {
		return nil, template.ErrNotFound
	}
	return tpl, nil
}
func (m *apiTemplateRepo) FindByName(ctx context.Context, name string) (*template.Template, error) {
	for _, tpl := range m.items {
		if tpl.Name == name {
			return tpl, nil
		}
	}
	return nil, template.ErrNotFound
}
func (m *apiTemplateRepo) List(ctx context.Context) ([]*template.Template, error) {
	result := make([]*template.Template, 0, len(m.items))
	for _, tpl := range m.items {
		result = append(result, tpl)
	}
	return result, nil
}

type apiRecipientRepo struct {
	items map[int64]*recipient.Recipient
}

func (m *apiRecipientRepo) Create(ctx context.Context, rcp *recipient.Recipient) error {
	m.items[rcp.ID] = rcp
	return nil
}
func (m *apiRecipientRepo) Update(ctx context.Context, rcp *recipient.Recipient) error {
	m.items[rcp.ID] = rcp
	return nil
}
func (m *apiRecipientRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return recipient.ErrNotFound
	}
	delete(m.items, id)
	return nil
}
func (m *apiRecipientRepo) FindByID(ctx context.Context, id int64) (*recipient.Recipient, error) {
	rcp, ok := m.items[id]
	if !ok {
		return nil, recipient.ErrNotFound
	}
	return rcp, nil
}
func (m *apiRecipientRepo) FindByEmail(ctx context.Context, email string) (*recipient.Recipient, error) {
	for _, rcp := range m.items {
		if rcp.Email == email {
			return rcp, nil
		}
	}
	return nil, recipient.ErrNotFound
}
func (m *apiRecipientRepo) List(ctx context.Context) ([]*recipient.Recipient, error) {
	result := make([]*recipient.Recipient, 0, len(m.items))
	for _, rcp := range m.items {
		result = append(result, rcp)
	}
	return result, nil
}

type apiDeliveryRepo struct {
	items map[string]*delivery.Log
}

func (m *apiDeliveryRepo) Create(ctx context.Context, log *delivery.Log) error {
	m.items[log.ID] = log
	return nil
}
func (m *apiDeliveryRepo) FindByID(ctx context.Context, id string) (*delivery.Log, error) {
	log, ok := m.items[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return log, nil
}
func (m *apiDeliveryRepo) ListByStatus(ctx context.Context, status delivery.Status, limit int) ([]*delivery.Log, error) {
	var result []*delivery.Log
	for _, log := range m.items {
		if log.Status == status {
			result = append(result, log)
		}
	}
	return result, nil
}
func (m *apiDeliveryRepo) ListByRecipient(ctx context.Context, recipientID int64) ([]*delivery.Log, error) {
	var result []*delivery.Log
	for _, log := range m.items {
		if log.RecipientID == recipientID {
			result = append(result, log)
		}
	}
	return result, nil
}
func (m *apiDeliveryRepo) ListOverdueRetries(ctx context.Context, cutoff time.Time, limit int) ([]*delivery.Log, error) {
	return nil, nil
}
func (m *apiDeliveryRepo) BeginAttempt(ctx context.Context, id string) (*delivery.Log, error) {
	return nil, delivery.ErrNotFound
}
func (m *apiDeliveryRepo) MarkSent(ctx context.Context, log *delivery.Log) error     { return nil }
func (m *apiDeliveryRepo) MarkRetrying(ctx context.Context, log *delivery.Log) error { return nil }
func (m *apiDeliveryRepo) MarkFailed(ctx context.Context, log *delivery.Log) error   { return nil }
func (m *apiDeliveryRepo) Reset(ctx context.Context, log *delivery.Log) error {
	if _, ok := m.items[log.ID]; !ok {
		return delivery.ErrNotFound
	}
	m.items[log.ID] = log
	return nil
}
func (m *apiDeliveryRepo) CountByStatus(ctx context.Context) (*delivery.Statistics, error) {
	stats := &delivery.Statistics{}
	for _, log := range m.items {
		if log.Status == delivery.StatusSent {
			stats.Sent++
		}
		stats.Total++
	}
	return stats, nil
}

type apiFixture struct {
	router     *Router
	templates  *apiTemplateRepo
	recipients *apiRecipientRepo
	deliveries *apiDeliveryRepo
	publisher  *testhelper.MockPublisher
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		templates:  &apiTemplateRepo{items: make(map[int64]*template.Template)},
		recipients: &apiRecipientRepo{items: make(map[int64]*recipient.Recipient)},
		deliveries: &apiDeliveryRepo{items: make(map[string]*delivery.Log)},
		publisher:  &testhelper.MockPublisher{},
	}

	logger := zap.NewNop()
	node, err := snowflake.NewNode()
	require.NoError(t, err)

	uc := dispatch.NewUseCase(f.templates, f.recipients, f.deliveries, f.publisher, testhelper.NewMockFileStore(), logger, 3)
	f.router = NewRouter(
		&config.Config{Port: "0"},
		uc,
		templates.NewService(f.templates, node, logger),
		recipients.NewService(f.recipients, node, logger),
		logger,
	)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.engine.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendEmails(t *testing.T) {
	f := newAPIFixture(t)

	f.templates.items[1] = template.New(1, "welcome", "Hi {recipient.name}", "b")
	f.recipients.items[10] = recipient.New(10, "Ana", "ana@example.com", "")

	rec := f.do(t, http.MethodPost, "/api/emails/send",
		`{"template_id":"1","recipient_ids":[10]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result dispatch.SendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Len(t, result.DeliveryLogIDs, 1)
	assert.Len(t, f.publisher.Published, 1)
}

func TestSendEmails_EmptyRecipients(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/emails/send", `{"template_id":"1","recipient_ids":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendEmails_UnknownTemplate(t *testing.T) {
	f := newAPIFixture(t)
	f.recipients.items[10] = recipient.New(10, "Ana", "ana@example.com", "")

	rec := f.do(t, http.MethodPost, "/api/emails/send", `{"template_id":"404","recipient_ids":[10]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "template not found")
}

func TestGetLogsByStatus_InvalidStatus(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/emails/logs/by-status/bogus", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLogsByStatus_CaseInsensitive(t *testing.T) {
	f := newAPIFixture(t)

	log := delivery.NewLog("log-1", 10, 1, "s", "b", 3)
	f.deliveries.items[log.ID] = log

	rec := f.do(t, http.MethodGet, "/api/emails/logs/by-status/pending", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "log-1")
}

func TestGetLog_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/emails/logs/ghost", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReprocessEmail_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/emails/ghost/reprocess", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatisticsEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	log := delivery.NewLog("log-1", 10, 1, "s", "b", 3)
	log.MarkProcessing()
	log.MarkSent()
	f.deliveries.items[log.ID] = log

	rec := f.do(t, http.MethodGet, "/api/emails/statistics", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var stats delivery.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Total)
}

func TestTemplateCRUD(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/templates",
		`{"name":"welcome","subject":"Hi {recipient.name}","body":"<p>Hi</p>"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created template.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Duplicate name conflicts.
	rec = f.do(t, http.MethodPost, "/api/templates",
		`{"name":"welcome","subject":"s","body":"b"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/templates", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/templates/99999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecipientCRUD(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/recipients",
		`{"name":"Ana","email":"ana@example.com","code":"C-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/recipients",
		`{"name":"Other","email":"ana@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/recipients/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
