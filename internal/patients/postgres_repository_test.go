package patients

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cardio-intake/internal/severity"
)

var patientColumnNames = []string{
	"id", "channel_id", "name", "email", "phone", "severity", "symptom",
	"responses", "appointment_time", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock), mock
}

func TestUpsertPatientByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO patients .* ON CONFLICT \(email\)`).
		WithArgs(pgxmock.AnyArg(), "chan-1", "Jane Doe", "jane@example.com", "").
		WillReturnRows(mock.NewRows(patientColumnNames).AddRow(
			"p-1", "chan-1", "Jane Doe", "jane@example.com", "", "", "",
			[]byte("[]"), nil, now, now,
		))

	p, err := repo.UpsertPatient(context.Background(), Details{
		ChannelID: "chan-1",
		Name:      " Jane Doe ",
		Email:     "Jane@Example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
	assert.Equal(t, "jane@example.com", p.Email)
	assert.Nil(t, p.AppointmentTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPatientByChannelInsertsWhenMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`UPDATE patients SET .* WHERE channel_id = \$1`).
		WithArgs("chan-9", "Sam", "").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO patients \(id, channel_id, name, phone\)`).
		WithArgs(pgxmock.AnyArg(), "chan-9", "Sam", "").
		WillReturnRows(mock.NewRows(patientColumnNames).AddRow(
			"p-9", "chan-9", "Sam", "", "", "", "",
			[]byte("[]"), nil, now, now,
		))

	p, err := repo.UpsertPatient(context.Background(), Details{ChannelID: "chan-9", Name: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "p-9", p.ID)
	assert.Equal(t, "chan-9", p.ChannelID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPatientRequiresIdentity(t *testing.T) {
	repo, _ := newMockRepo(t)
	_, err := repo.UpsertPatient(context.Background(), Details{Name: "Nobody"})
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestSaveAppointmentUsesExactInstant(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	created := at.Add(-time.Hour)

	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(pgxmock.AnyArg(), "p-1", "evt-1", at, AppointmentStatusScheduled).
		WillReturnRows(mock.NewRows([]string{"created_at"}).AddRow(created))

	appt, err := repo.SaveAppointment(context.Background(), "p-1", "evt-1", at)
	require.NoError(t, err)
	assert.True(t, appt.ScheduledTime.Equal(at))
	assert.Equal(t, "evt-1", appt.ExternalEventID)
	assert.Equal(t, created, appt.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveChiefComplaintWrapsError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO patient_symptoms`).
		WithArgs("p-1", "Chest Pain", pgxmock.AnyArg(), "CRITICAL").
		WillReturnError(errors.New("connection reset"))

	err := repo.SaveChiefComplaint(context.Background(), "p-1", CaseSnapshot{Symptom: "Chest Pain", Severity: severity.Critical})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save chief complaint failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCaseSnapshotReturnsRefreshedPatient(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	snapshot := CaseSnapshot{
		Symptom:   "Chest Pain",
		Responses: []CategoryAnswers{{Category: "onset", Answers: []string{"an hour ago"}}},
		Severity:  severity.Critical,
	}
	raw, err := json.Marshal(snapshot.Responses)
	require.NoError(t, err)

	mock.ExpectQuery(`UPDATE patients SET symptom = \$2`).
		WithArgs("p-1", "Chest Pain", pgxmock.AnyArg(), "CRITICAL", pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(patientColumnNames).AddRow(
			"p-1", "chan-1", "Jane", "jane@example.com", "", "CRITICAL", "Chest Pain",
			raw, &at, now, now,
		))

	p, err := repo.UpdateCaseSnapshot(context.Background(), "p-1", snapshot, at)
	require.NoError(t, err)
	assert.Equal(t, severity.Critical, p.Severity)
	require.NotNil(t, p.AppointmentTime)
	assert.True(t, p.AppointmentTime.Equal(at))
	assert.Equal(t, snapshot.Responses, p.Responses)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSeverityUnknownPatient(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`UPDATE patients SET severity = \$2`).
		WithArgs("missing", "LOW", "Fatigue", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateSeverity(context.Background(), "missing", CaseSnapshot{Symptom: "Fatigue", Severity: severity.Low})
	assert.ErrorIs(t, err, ErrPatientNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSymptomCatalogPreservesCategoryOrder(t *testing.T) {
	repo, mock := newMockRepo(t)
	followUps := []byte(`[{"category":"onset","questions":["When did it start?"]},{"category":"red_flags","questions":["Any fainting?","Any sweating?"]}]`)

	mock.ExpectQuery(`SELECT id, name, follow_up_questions FROM symptoms ORDER BY name`).
		WillReturnRows(mock.NewRows([]string{"id", "name", "follow_up_questions"}).
			AddRow(int64(1), "Chest Pain", followUps).
			AddRow(int64(2), "Fatigue", []byte(`[]`)))

	symptoms, err := repo.ListSymptomCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, symptoms, 2)

	flat := symptoms[0].FlattenQuestions()
	require.Len(t, flat, 3)
	assert.Equal(t, FollowUpQuestion{Category: "onset", Question: "When did it start?"}, flat[0])
	assert.Equal(t, "Any sweating?", flat[2].Question)
	assert.Empty(t, symptoms[1].FlattenQuestions())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPatientsBuildsFilteredQuery(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM patients WHERE \(name ILIKE \$1 OR email ILIKE \$1 OR symptom ILIKE \$1\) AND severity = \$2 ORDER BY CASE severity .* LIMIT \$3 OFFSET \$4`).
		WithArgs("%jane%", "CRITICAL", 20, 40).
		WillReturnRows(mock.NewRows(patientColumnNames).AddRow(
			"p-1", "chan-1", "Jane", "jane@example.com", "", "CRITICAL", "Chest Pain",
			[]byte("[]"), nil, now, now,
		))

	out, err := repo.ListPatients(context.Background(), Filter{
		Search:   " jane ",
		Severity: severity.Critical,
		Sort:     "SEVERITY",
		Limit:    20,
		Offset:   40,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Jane", out[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSymptom(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`INSERT INTO symptoms .* ON CONFLICT \(name\)`).
		WithArgs("Palpitations", pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(7)))

	out, err := repo.UpsertSymptom(context.Background(), Symptom{Name: "Palpitations"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{Limit: 0, Offset: -3, Sort: "bogus"}.Normalize()
	assert.Equal(t, 100, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, SortNewest, f.Sort)

	f = Filter{Limit: 10, Sort: " Oldest "}.Normalize()
	assert.Equal(t, 10, f.Limit)
	assert.Equal(t, SortOldest, f.Sort)
}
