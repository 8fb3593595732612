package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cardio-intake/internal/archive"
	"github.com/wolfman30/cardio-intake/internal/calendar"
	"github.com/wolfman30/cardio-intake/internal/notify"
	"github.com/wolfman30/cardio-intake/internal/patients"
	"github.com/wolfman30/cardio-intake/internal/severity"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

var (
	proposedSlot = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	fixedNow     = time.Date(2025, 5, 31, 8, 0, 0, 0, time.UTC)
)

type fakeCalendar struct {
	mu        sync.Mutex
	proposal  []time.Time
	offers    []time.Time
	queries   []calendar.SlotQuery
	tiers     []severity.Level
	booked    []calendar.EventRequest
	failBook  bool
	failQuery bool
	nextErr   error
}

func (f *fakeCalendar) NextAvailableSlots(_ context.Context, tier severity.Level, q calendar.SlotQuery) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	f.tiers = append(f.tiers, tier)
	if f.failQuery {
		return nil, errors.New("calendar down")
	}
	if q.Limit == 1 {
		return append([]time.Time(nil), f.proposal...), nil
	}
	out := append([]time.Time(nil), f.offers...)
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeCalendar) Book(_ context.Context, req calendar.EventRequest) (*calendar.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBook {
		return nil, calendar.ErrSlotTaken
	}
	f.booked = append(f.booked, req)
	return &calendar.Booking{EventID: fmt.Sprintf("evt-%d", len(f.booked)), Start: req.Start}, nil
}

func (f *fakeCalendar) BookNextAvailable(ctx context.Context, req calendar.EventRequest) (*calendar.Booking, error) {
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	req.Start = fixedNow.Add(2 * time.Hour)
	return f.Book(ctx, req)
}

func (f *fakeCalendar) bookings() []calendar.EventRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]calendar.EventRequest(nil), f.booked...)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
	err     error
}

func (n *recordingNotifier) NotifyProvider(_ context.Context, notice notify.Notice) (notify.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return notify.Receipt{}, n.err
	}
	n.notices = append(n.notices, notice)
	return notify.Receipt{Channel: "test", MessageID: "1"}, nil
}

func (n *recordingNotifier) sent() []notify.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notice(nil), n.notices...)
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []*archive.ConsultationRecord
}

func (a *recordingArchiver) ArchiveConsultation(_ context.Context, r *archive.ConsultationRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, r)
	return nil
}

// failingRepo wraps the memory repository and fails chosen operations.
type failingRepo struct {
	*patients.MemoryRepository
	failComplaint bool
	failUpsert    bool
	failCatalog   bool
	panicSeverity bool
}

func (r *failingRepo) UpsertPatient(ctx context.Context, d patients.Details) (*patients.Patient, error) {
	if r.failUpsert {
		return nil, errors.New("db down")
	}
	return r.MemoryRepository.UpsertPatient(ctx, d)
}

func (r *failingRepo) SaveChiefComplaint(ctx context.Context, id string, c patients.CaseSnapshot) error {
	if r.failComplaint {
		return errors.New("db down")
	}
	return r.MemoryRepository.SaveChiefComplaint(ctx, id, c)
}

func (r *failingRepo) ListSymptomCatalog(ctx context.Context) ([]patients.Symptom, error) {
	if r.failCatalog {
		return nil, errors.New("db down")
	}
	return r.MemoryRepository.ListSymptomCatalog(ctx)
}

func (r *failingRepo) UpdateSeverity(ctx context.Context, id string, c patients.CaseSnapshot) error {
	if r.panicSeverity {
		panic("boom")
	}
	return r.MemoryRepository.UpdateSeverity(ctx, id, c)
}

type harness struct {
	orch     *Orchestrator
	repo     *failingRepo
	cal      *fakeCalendar
	notifier *recordingNotifier
	archive  *recordingArchiver
	store    *MemoryStore
}

func chestPain() patients.Symptom {
	return patients.Symptom{
		Name: "Chest Pain",
		FollowUps: []patients.QuestionGroup{
			{Category: "characteristics", Questions: []string{"How would you describe the pain?"}},
			{Category: severity.RedFlagsCategory, Questions: []string{"Are you short of breath or sweating right now?"}},
		},
	}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	repo := &failingRepo{MemoryRepository: patients.NewMemoryRepository()}
	_, err := repo.UpsertSymptom(context.Background(), chestPain())
	require.NoError(t, err)
	_, err = repo.UpsertSymptom(context.Background(), patients.Symptom{Name: "Dizziness"})
	require.NoError(t, err)
	_, err = repo.UpsertSymptom(context.Background(), patients.Symptom{
		Name:      "Palpitations",
		FollowUps: []patients.QuestionGroup{{Category: "history", Questions: []string{"Any medical history?"}}},
	})
	require.NoError(t, err)

	h := &harness{
		repo:     repo,
		cal:      &fakeCalendar{proposal: []time.Time{proposedSlot}, offers: hourlySlots(proposedSlot, 10)},
		notifier: &recordingNotifier{},
		archive:  &recordingArchiver{},
		store:    NewMemoryStore(time.Hour),
	}
	h.orch = NewOrchestrator(Deps{
		Sessions:   h.store,
		Repository: repo,
		Calendar:   h.cal,
		Notifier:   h.notifier,
		Archive:    h.archive,
		Logger:     logging.New("error"),
	}, cfg)
	h.orch.now = func() time.Time { return fixedNow }
	return h
}

func hourlySlots(from time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = from.Add(time.Duration(i+1) * time.Hour)
	}
	return out
}

func (h *harness) say(t *testing.T, channel, text string) string {
	t.Helper()
	reply, ok := h.orch.OnMessage(context.Background(), channel, text)
	require.True(t, ok, "expected a reply to %q", text)
	return reply
}

func (h *harness) state(t *testing.T, channel string) State {
	t.Helper()
	sess, err := h.orch.Session(context.Background(), channel)
	require.NoError(t, err)
	return sess.State()
}
