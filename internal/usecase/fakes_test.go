package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"outreach-service/internal/domain/entity"
	"outreach-service/internal/domain/repository"
	"outreach-service/pkg/logger"
	"outreach-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var baseTime = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// fakeClock is shared by every service of a test environment.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAutomationRepo struct {
	mu      sync.Mutex
	records map[string]*entity.AutomationRecord
	saves   int
	// beforeSave runs before the version check, e.g. to simulate a concurrent writer.
	beforeSave func(r *fakeAutomationRepo, leadID string)
	findDueErr error
}

func newFakeAutomationRepo() *fakeAutomationRepo {
	return &fakeAutomationRepo{records: make(map[string]*entity.AutomationRecord)}
}

func (r *fakeAutomationRepo) put(record *entity.AutomationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.LeadID] = record.Clone()
}

func (r *fakeAutomationRepo) get(leadID string) *entity.AutomationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[leadID].Clone()
}

// bump simulates another writer touching the stored record.
func (r *fakeAutomationRepo) bump(leadID string) {
	r.records[leadID].Version++
}

func (r *fakeAutomationRepo) FindByLead(ctx context.Context, leadID string) (*entity.AutomationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[leadID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return record.Clone(), nil
}

func (r *fakeAutomationRepo) Create(ctx context.Context, record *entity.AutomationRecord) (*entity.AutomationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[record.LeadID]; ok {
		return existing.Clone(), nil
	}
	r.records[record.LeadID] = record.Clone()
	return record.Clone(), nil
}

func (r *fakeAutomationRepo) Save(ctx context.Context, record *entity.AutomationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeSave != nil {
		r.beforeSave(r, record.LeadID)
	}
	stored, ok := r.records[record.LeadID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != record.Version {
		return repository.ErrVersionConflict
	}
	record.Version++
	r.records[record.LeadID] = record.Clone()
	r.saves++
	return nil
}

func (r *fakeAutomationRepo) FindDue(ctx context.Context, now time.Time, leadMaxEmails int, limit int) ([]*entity.AutomationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findDueErr != nil {
		return nil, r.findDueErr
	}

	var due []*entity.AutomationRecord
	for _, record := range r.records {
		if !record.IsActive {
			continue
		}
		data, ok := record.StageData[record.CurrentStage]
		if !ok || data.NextDueAt == nil || data.NextDueAt.After(now) {
			continue
		}
		switch record.CurrentStage {
		case entity.StageLead:
			limitFor := data.MaxEmails
			if limitFor == 0 {
				limitFor = leadMaxEmails
			}
			if data.EmailsSent >= limitFor {
				continue
			}
		case entity.StageQualified, entity.StageProposalSent, entity.StageNegotiations:
		default:
			continue
		}
		due = append(due, record.Clone())
	}
	// never scanned first, then least recently scanned, ties by lead id
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].LastScannedAt, due[j].LastScannedAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return due[i].LeadID < due[j].LeadID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakeAutomationRepo) MarkScanned(ctx context.Context, leadIDs []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range leadIDs {
		if record, ok := r.records[id]; ok {
			scannedAt := at
			record.LastScannedAt = &scannedAt
		}
	}
	return nil
}

type fakeLeadRepo struct {
	mu         sync.Mutex
	leads      map[string]*entity.Lead
	activities map[string][]entity.LeadActivity
	findErr    map[string]error
}

func newFakeLeadRepo(leads ...*entity.Lead) *fakeLeadRepo {
	r := &fakeLeadRepo{
		leads:      make(map[string]*entity.Lead),
		activities: make(map[string][]entity.LeadActivity),
		findErr:    make(map[string]error),
	}
	for _, l := range leads {
		r.leads[l.ID] = l
	}
	return r
}

func (r *fakeLeadRepo) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.findErr[id]; err != nil {
		return nil, err
	}
	lead, ok := r.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *lead
	return &copied, nil
}

func (r *fakeLeadRepo) FindByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.leads {
		if strings.EqualFold(lead.Email, email) {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeLeadRepo) AddActivity(ctx context.Context, leadID string, activity entity.LeadActivity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leads[leadID]; !ok {
		return repository.ErrNotFound
	}
	r.activities[leadID] = append(r.activities[leadID], activity)
	return nil
}

type fakeOwnerRepo struct {
	owners map[uint]*entity.Owner
}

func (r *fakeOwnerRepo) GetByID(ctx context.Context, id uint) (*entity.Owner, error) {
	owner, ok := r.owners[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return owner, nil
}

type fakeStatsRepo struct {
	mu       sync.Mutex
	stats    entity.EmailStats
	getCalls int
	failWith error
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{stats: entity.EmailStats{
		ID:           entity.EmailStatsID,
		ByType:       make(map[entity.EmailType]entity.TypeCounters),
		RecentErrors: []entity.SendErrorRecord{},
	}}
}

func (r *fakeStatsRepo) Get(ctx context.Context) (*entity.EmailStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	copied := r.stats
	copied.ByType = make(map[entity.EmailType]entity.TypeCounters, len(r.stats.ByType))
	for k, v := range r.stats.ByType {
		copied.ByType[k] = v
	}
	copied.RecentErrors = append([]entity.SendErrorRecord(nil), r.stats.RecentErrors...)
	return &copied, nil
}

func (r *fakeStatsRepo) IncrementSent(ctx context.Context, emailType entity.EmailType, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.stats.Sent++
	c := r.stats.ByType[emailType]
	c.Sent++
	r.stats.ByType[emailType] = c
	r.stats.UpdatedAt = at
	return nil
}

func (r *fakeStatsRepo) IncrementFailed(ctx context.Context, record entity.SendErrorRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.stats.Failed++
	c := r.stats.ByType[record.EmailType]
	c.Failed++
	r.stats.ByType[record.EmailType] = c
	r.stats.RecentErrors = append(r.stats.RecentErrors, record)
	if len(r.stats.RecentErrors) > entity.MaxRecentErrors {
		r.stats.RecentErrors = r.stats.RecentErrors[len(r.stats.RecentErrors)-entity.MaxRecentErrors:]
	}
	r.stats.UpdatedAt = record.OccurredAt
	return nil
}

func (r *fakeStatsRepo) ResetCounters(ctx context.Context, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Sent = 0
	r.stats.Failed = 0
	r.stats.ByType = make(map[entity.EmailType]entity.TypeCounters)
	r.stats.RecentErrors = []entity.SendErrorRecord{}
	r.stats.ResetAt = &at
	return nil
}

func (r *fakeStatsRepo) snapshot() entity.EmailStats {
	s, _ := r.Get(context.Background())
	return *s
}

type fakeDelivery struct {
	mu    sync.Mutex
	sent  []repository.OutboundEmail
	calls int
	// failures makes the first n calls fail; failAlways overrides it.
	failures   int
	failAlways bool
}

func (d *fakeDelivery) Send(ctx context.Context, email repository.OutboundEmail) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failAlways || d.calls <= d.failures {
		return "", errors.New("smtp: connection refused")
	}
	d.sent = append(d.sent, email)
	return fmt.Sprintf("provider-%d", d.calls), nil
}

func (d *fakeDelivery) sentTo() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.sent))
	for _, e := range d.sent {
		out = append(out, e.To)
	}
	return out
}

type stubRenderer struct {
	err error
}

func (r stubRenderer) Render(action entity.Action, lead *entity.Lead, owner *entity.Owner) (entity.RenderedEmail, error) {
	if r.err != nil {
		return entity.RenderedEmail{}, r.err
	}
	return entity.RenderedEmail{
		Subject: fmt.Sprintf("%s #%d for %s", action.EmailType, action.Ordinal, lead.Name),
		HTML:    "<p>hello</p>",
		Text:    "hello",
	}, nil
}

func (r stubRenderer) RenderStageChange(lead *entity.Lead, owner *entity.Owner, from, to entity.Stage) (entity.RenderedEmail, error) {
	return entity.RenderedEmail{
		Subject: fmt.Sprintf("%s moved to %s", lead.Name, to.Label()),
		Text:    "moved",
	}, nil
}

// testEnv wires every automation collaborator against in-memory fakes.
type testEnv struct {
	clock       *fakeClock
	automations *fakeAutomationRepo
	leads       *fakeLeadRepo
	owners      *fakeOwnerRepo
	statsRepo   *fakeStatsRepo
	delivery    *fakeDelivery
	sleeps      []time.Duration
	metrics     *metrics.Metrics

	stats      *StatsService
	sender     *RetryingSender
	machine    *StageMachine
	automation *AutomationService
	replies    *ReplyHandler
	scanner    *DueScanner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:       &fakeClock{now: baseTime},
		automations: newFakeAutomationRepo(),
		leads:       newFakeLeadRepo(),
		owners:      &fakeOwnerRepo{owners: map[uint]*entity.Owner{}},
		statsRepo:   newFakeStatsRepo(),
		delivery:    &fakeDelivery{},
		metrics:     metrics.NewMetrics("test", prometheus.NewRegistry()),
	}
	log := logger.NewNop()

	env.stats = NewStatsService(env.statsRepo, nil, log)
	env.stats.now = env.clock.Now

	env.sender = NewRetryingSender(env.delivery, env.stats, env.metrics, log, SenderConfig{
		MaxRetries: 3,
		RetryDelay: time.Second,
	})
	env.sender.now = env.clock.Now
	env.sender.sleep = func(d time.Duration) { env.sleeps = append(env.sleeps, d) }

	env.machine = NewStageMachine(DefaultStageRules())

	env.automation = NewAutomationService(env.automations, env.leads, env.owners, env.machine, env.sender, stubRenderer{}, log)
	env.automation.now = env.clock.Now
	ids := 0
	env.automation.newID = func() string {
		ids++
		return fmt.Sprintf("entry-%d", ids)
	}

	env.replies = NewReplyHandler(env.automation, env.automations, env.leads, env.metrics, log)
	env.replies.now = env.clock.Now

	env.scanner = NewDueScanner(env.automations, env.automation, env.metrics, log, 0)
	env.scanner.now = env.clock.Now
	return env
}

func (e *testEnv) addLead(id string, stage entity.Stage, ownerID uint) *entity.Lead {
	lead := &entity.Lead{
		ID:    id,
		Name:  "Lead " + id,
		Email: id + "@example.com",
		Stage: stage,
	}
	if ownerID != 0 {
		lead.AssignedOwnerID = &ownerID
	}
	e.leads.leads[id] = lead
	return lead
}

func (e *testEnv) addOwner(id uint) *entity.Owner {
	owner := &entity.Owner{ID: id, Name: fmt.Sprintf("Owner %d", id), Email: fmt.Sprintf("owner%d@example.com", id)}
	e.owners.owners[id] = owner
	return owner
}

// addRecord stores a fresh record for the lead at stage, created at the current time.
func (e *testEnv) addRecord(leadID string, stage entity.Stage) *entity.AutomationRecord {
	record := e.machine.NewRecord(leadID, stage, e.clock.Now())
	e.automations.put(record)
	return e.automations.get(leadID)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
