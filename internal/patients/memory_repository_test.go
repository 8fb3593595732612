package patients

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cardio-intake/internal/severity"
)

func TestMemoryRepositoryUpsertByEmailMerges(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	first, err := repo.UpsertPatient(ctx, Details{ChannelID: "c1", Email: "a@b.co", Name: "Ann"})
	require.NoError(t, err)

	second, err := repo.UpsertPatient(ctx, Details{ChannelID: "c2", Email: "A@B.co", Phone: "555"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ann", second.Name)
	assert.Equal(t, "555", second.Phone)
	assert.Equal(t, "c2", second.ChannelID)
}

func TestMemoryRepositoryCaseLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	p, err := repo.UpsertPatient(ctx, Details{ChannelID: "c1"})
	require.NoError(t, err)

	snapshot := CaseSnapshot{Symptom: "Chest Pain", Severity: severity.Critical}
	snapshot.Append("onset", "today")
	snapshot.Append("red_flags", "yes")
	snapshot.Append("onset", "suddenly")

	require.NoError(t, repo.SaveChiefComplaint(ctx, p.ID, snapshot))
	require.NoError(t, repo.UpdateSeverity(ctx, p.ID, snapshot))

	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	_, err = repo.SaveAppointment(ctx, p.ID, "evt", at)
	require.NoError(t, err)
	refreshed, err := repo.UpdateCaseSnapshot(ctx, p.ID, snapshot, at)
	require.NoError(t, err)

	assert.Equal(t, severity.Critical, refreshed.Severity)
	require.NotNil(t, refreshed.AppointmentTime)
	assert.True(t, refreshed.AppointmentTime.Equal(at))
	assert.Equal(t, []string{"today", "suddenly"}, snapshot.ResponseMap()["onset"])
	assert.Len(t, repo.Complaints(p.ID), 1)
	assert.Len(t, repo.Appointments(p.ID), 1)

	assert.ErrorIs(t, repo.SaveChiefComplaint(ctx, "nope", snapshot), ErrPatientNotFound)
}

func TestMemoryRepositoryListPatients(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, tc := range []struct {
		email string
		name  string
		level severity.Level
	}{
		{"low@x.io", "Lo", severity.Low},
		{"crit@x.io", "Cri", severity.Critical},
		{"med@x.io", "Med", severity.Medium},
	} {
		p, err := repo.UpsertPatient(ctx, Details{Email: tc.email, Name: tc.name})
		require.NoError(t, err)
		require.NoError(t, repo.UpdateSeverity(ctx, p.ID, CaseSnapshot{Severity: tc.level}))
	}

	bySeverity, err := repo.ListPatients(ctx, Filter{Sort: SortSeverity})
	require.NoError(t, err)
	require.Len(t, bySeverity, 3)
	assert.Equal(t, "Cri", bySeverity[0].Name)
	assert.Equal(t, "Lo", bySeverity[2].Name)

	critical, err := repo.ListPatients(ctx, Filter{Severity: severity.Critical})
	require.NoError(t, err)
	require.Len(t, critical, 1)

	search, err := repo.ListPatients(ctx, Filter{Search: "MED"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, "med@x.io", search[0].Email)

	paged, err := repo.ListPatients(ctx, Filter{Limit: 1, Offset: 1, Sort: SortOldest})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "Cri", paged[0].Name)
}

type countingSource struct {
	calls atomic.Int32
	err   error
}

func (s *countingSource) ListSymptomCatalog(context.Context) ([]Symptom, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return []Symptom{{ID: 1, Name: "Chest Pain"}}, nil
}

func TestCachedCatalogHitsSourceOnce(t *testing.T) {
	src := &countingSource{}
	cat := NewCachedCatalog(src, time.Minute)

	for i := 0; i < 5; i++ {
		out, err := cat.ListSymptomCatalog(context.Background())
		require.NoError(t, err)
		require.Len(t, out, 1)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	cat.Invalidate()
	_, err := cat.ListSymptomCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCachedCatalogDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("db down")}
	cat := NewCachedCatalog(src, time.Minute)

	_, err := cat.ListSymptomCatalog(context.Background())
	require.Error(t, err)

	src.err = nil
	out, err := cat.ListSymptomCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, int32(2), src.calls.Load())
}
