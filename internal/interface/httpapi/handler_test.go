package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	view     *entity.StatsView
	err      error
	resetErr error
	resets   int
}

func (f *fakeStats) GetStats(ctx context.Context) (*entity.StatsView, error) {
	return f.view, f.err
}

func (f *fakeStats) ResetCounters(ctx context.Context) error {
	f.resets++
	return f.resetErr
}

type fakeAutomations struct {
	records map[string]*entity.AutomationRecord
	err     error
}

func newFakeAutomations(records ...*entity.AutomationRecord) *fakeAutomations {
	f := &fakeAutomations{records: make(map[string]*entity.AutomationRecord)}
	for _, r := range records {
		f.records[r.LeadID] = r
	}
	return f
}

func (f *fakeAutomations) lookup(leadID string) (*entity.AutomationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.records[leadID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeAutomations) GetDetail(ctx context.Context, leadID string) (*entity.AutomationDetail, error) {
	r, err := f.lookup(leadID)
	if err != nil {
		return nil, err
	}
	return &entity.AutomationDetail{
		LeadID:       r.LeadID,
		CurrentStage: r.CurrentStage,
		StageLabel:   r.CurrentStage.Label(),
		IsActive:     r.IsActive,
		PausedReason: r.PausedReason,
	}, nil
}

func (f *fakeAutomations) EnsureRecord(ctx context.Context, leadID string, stage entity.Stage) (*entity.AutomationRecord, error) {
	if r, err := f.lookup(leadID); err == nil {
		return r, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	r := &entity.AutomationRecord{LeadID: leadID, CurrentStage: stage, IsActive: true}
	f.records[leadID] = r
	return r, nil
}

func (f *fakeAutomations) UpdateStage(ctx context.Context, leadID string, stage entity.Stage) (*entity.AutomationRecord, error) {
	r, err := f.lookup(leadID)
	if err != nil {
		return nil, err
	}
	r.CurrentStage = stage
	return r, nil
}

func (f *fakeAutomations) Pause(ctx context.Context, leadID string, reason entity.PauseReason) (*entity.AutomationRecord, error) {
	r, err := f.lookup(leadID)
	if err != nil {
		return nil, err
	}
	r.IsActive = false
	r.PausedReason = reason
	return r, nil
}

func (f *fakeAutomations) Resume(ctx context.Context, leadID string) (*entity.AutomationRecord, error) {
	r, err := f.lookup(leadID)
	if err != nil {
		return nil, err
	}
	r.IsActive = true
	r.PausedReason = entity.PauseReasonNone
	return r, nil
}

// recordingLogger keeps error messages so tests can assert on them.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (l *recordingLogger) Info(msg string, keysAndValues ...interface{}) {}
func (l *recordingLogger) Warn(msg string, keysAndValues ...interface{}) {}
func (l *recordingLogger) Fatal(msg string, keysAndValues ...interface{}) {}

func (l *recordingLogger) Error(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) With(keysAndValues ...interface{}) logger.Logger {
	return l
}

func newTestMux(stats StatsService, automations AutomationService) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(stats, automations, logger.NewNop()).Register(mux)
	return mux
}

func serve(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestGetStats(t *testing.T) {
	mux := newTestMux(&fakeStats{view: &entity.StatsView{Sent: 9, Failed: 1, SuccessRate: 90}}, newFakeAutomations())

	rec := serve(mux, http.MethodGet, "/api/v1/stats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body entity.StatsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(9), body.Sent)
	assert.Equal(t, 90.0, body.SuccessRate)
}

func TestGetStats_Error(t *testing.T) {
	mux := newTestMux(&fakeStats{err: errors.New("db down")}, newFakeAutomations())

	rec := serve(mux, http.MethodGet, "/api/v1/stats", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestResetStats(t *testing.T) {
	stats := &fakeStats{}
	mux := newTestMux(stats, newFakeAutomations())

	rec := serve(mux, http.MethodPost, "/api/v1/stats/reset", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, stats.resets)

	stats.resetErr = errors.New("db down")
	rec = serve(mux, http.MethodPost, "/api/v1/stats/reset", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(mux, http.MethodPost, "/api/v1/stats", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetAutomation(t *testing.T) {
	mux := newTestMux(&fakeStats{}, newFakeAutomations(
		&entity.AutomationRecord{LeadID: "lead-1", CurrentStage: entity.StageQualified, IsActive: true},
	))

	rec := serve(mux, http.MethodGet, "/api/v1/automations/lead-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body entity.AutomationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, entity.StageQualified, body.CurrentStage)
	assert.Equal(t, "Qualified", body.StageLabel)
	assert.True(t, body.IsActive)

	rec = serve(mux, http.MethodGet, "/api/v1/automations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollAndUpdateStage(t *testing.T) {
	automations := newFakeAutomations()
	mux := newTestMux(&fakeStats{}, automations)

	rec := serve(mux, http.MethodPost, "/api/v1/automations/lead-1", `{"stage":"lead"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, automations.records, "lead-1")
	assert.Equal(t, entity.StageLead, automations.records["lead-1"].CurrentStage)

	rec = serve(mux, http.MethodPost, "/api/v1/automations/lead-1/stage", `{"stage":"proposalSent"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body entity.AutomationRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, entity.StageProposalSent, body.CurrentStage)

	rec = serve(mux, http.MethodPost, "/api/v1/automations/missing/stage", `{"stage":"won"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStageRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"stage":`},
		{"missing stage", `{}`},
		{"unknown stage", `{"stage":"closedWon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			automations := newFakeAutomations(&entity.AutomationRecord{LeadID: "lead-1", CurrentStage: entity.StageLead})
			mux := newTestMux(&fakeStats{}, automations)

			rec := serve(mux, http.MethodPost, "/api/v1/automations/lead-1/stage", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, entity.StageLead, automations.records["lead-1"].CurrentStage)

			rec = serve(mux, http.MethodPost, "/api/v1/automations/lead-2", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotContains(t, automations.records, "lead-2")
		})
	}
}

func TestPauseResume(t *testing.T) {
	automations := newFakeAutomations(&entity.AutomationRecord{LeadID: "lead-1", CurrentStage: entity.StageLead, IsActive: true})
	mux := newTestMux(&fakeStats{}, automations)

	rec := serve(mux, http.MethodPost, "/api/v1/automations/lead-1/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, automations.records["lead-1"].IsActive)
	assert.Equal(t, entity.PauseReasonManual, automations.records["lead-1"].PausedReason)

	rec = serve(mux, http.MethodPost, "/api/v1/automations/lead-1/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, automations.records["lead-1"].IsActive)

	rec = serve(mux, http.MethodPost, "/api/v1/automations/missing/pause", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	automations.err = errors.New("mongo down")
	rec = serve(mux, http.MethodPost, "/api/v1/automations/lead-1/resume", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "mongo down")
}

func TestWriteJSON_LogsEncodeFailure(t *testing.T) {
	log := &recordingLogger{}
	h := NewHandler(&fakeStats{}, newFakeAutomations(), log)

	rec := httptest.NewRecorder()
	h.writeJSON(rec, http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	require.Len(t, log.errors, 1)
	assert.Equal(t, "Failed to write response", log.errors[0])
}
