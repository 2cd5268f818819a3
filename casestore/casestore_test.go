package casestore_test

import (
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/model"
)

var rowColumns = []string{
	"case_id", "user_id", "trigger_transaction_id", "created_at", "updated_at", "resolved_at",
	"status", "confidence_score", "fraud_probability", "triggered_by", "investigation_layers",
	"detection_signals", "transaction_summary", "identity_flags", "behavioral_flags",
	"network_flags", "ai_signals", "ai_reasoning", "ai_recommendations",
	"assigned_to", "human_decision", "resolution_notes", "related_accounts", "fraud_ring_id",
}

func newMock(t *testing.T) (*casestore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "postgres")
	return casestore.New(sdb), mock
}

func rowValues(c *model.Case) []driver.Value {
	var resolvedAt interface{}
	if c.ResolvedAt != nil {
		resolvedAt = *c.ResolvedAt
	}
	return []driver.Value{
		c.CaseID, c.UserID, c.TriggerTransactionID, c.CreatedAt, c.UpdatedAt, resolvedAt,
		string(c.Status), c.ConfidenceScore, c.FraudProbability, string(c.TriggeredBy), []byte(`["RULE_BASED"]`),
		[]byte(`{}`), []byte(`{}`), []byte(`{}`), []byte(`{}`),
		[]byte(`{}`), []byte(`{}`), nil, nil,
		nil, nil, nil, []byte(`[]`), nil,
	}
}

func sampleCase() *model.Case {
	now := time.Now().UTC()
	return &model.Case{
		CaseID:               "CASE-1-0",
		UserID:               "user-1",
		TriggerTransactionID: "tx-1",
		CreatedAt:            now,
		UpdatedAt:            now,
		Status:               model.StatusUnderInvestigation,
		ConfidenceScore:      0.5,
		FraudProbability:     0.4,
		TriggeredBy:          model.TriggeredByRuleEngine,
		InvestigationLayers:  []string{model.LayerRuleBased},
	}
}

func TestCreateSuccess(t *testing.T) {
	store, mock := newMock(t)
	c := sampleCase()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fraud_cases")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	got, err := store.Create(t.Context(), c)
	require.NoError(t, err)
	assert.Equal(t, c.CaseID, got.CaseID)
	assert.Equal(t, c.TriggerTransactionID, got.TriggerTransactionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateTrigger(t *testing.T) {
	store, mock := newMock(t)
	c := sampleCase()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO fraud_cases")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.Create(t.Context(), c)
	assert.ErrorIs(t, err, casestore.ErrDuplicateTrigger)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByCaseIDNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM fraud_cases WHERE case_id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(rowColumns))

	_, err := store.GetByCaseID(t.Context(), "missing")
	assert.ErrorIs(t, err, casestore.ErrCaseNotFound)
}

func TestGetByCaseIDRoundTrip(t *testing.T) {
	store, mock := newMock(t)
	c := sampleCase()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM fraud_cases WHERE case_id = $1")).
		WithArgs(c.CaseID).
		WillReturnRows(sqlmock.NewRows(rowColumns).AddRow(rowValues(c)...))

	got, err := store.GetByCaseID(t.Context(), c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, c.CaseID, got.CaseID)
	assert.Equal(t, c.Status, got.Status)
	assert.Equal(t, []string{model.LayerRuleBased}, got.InvestigationLayers)
}

func TestUpdateEnforcesIllegalTransition(t *testing.T) {
	store, mock := newMock(t)
	c := sampleCase()
	c.Status = model.StatusAutoApproved

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM fraud_cases WHERE case_id = $1 FOR UPDATE")).
		WithArgs(c.CaseID).
		WillReturnRows(sqlmock.NewRows(rowColumns).AddRow(rowValues(c)...))
	mock.ExpectRollback()

	_, err := store.Update(t.Context(), c.CaseID, func(current *model.Case) (*model.Case, error) {
		next := *current
		next.Status = model.StatusUnderInvestigation
		return &next, nil
	})

	assert.ErrorIs(t, err, model.ErrIllegalTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRejectsMutationOnResolvedCase(t *testing.T) {
	store, mock := newMock(t)
	c := sampleCase()
	c.Status = model.StatusResolved

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM fraud_cases WHERE case_id = $1 FOR UPDATE")).
		WithArgs(c.CaseID).
		WillReturnRows(sqlmock.NewRows(rowColumns).AddRow(rowValues(c)...))
	mock.ExpectRollback()

	_, err := store.Update(t.Context(), c.CaseID, func(current *model.Case) (*model.Case, error) {
		next := *current
		notes := "too late"
		next.ResolutionNotes = &notes
		return &next, nil
	})

	assert.ErrorIs(t, err, model.ErrIllegalTransition)
}

func TestUpdateHappyPathUnionsLayers(t *testing.T) {
	store, mock := newMock(t)
	c := sampleCase()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM fraud_cases WHERE case_id = $1 FOR UPDATE")).
		WithArgs(c.CaseID).
		WillReturnRows(sqlmock.NewRows(rowColumns).AddRow(rowValues(c)...))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE fraud_cases SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := store.Update(t.Context(), c.CaseID, func(current *model.Case) (*model.Case, error) {
		next := *current
		next.Status = model.StatusAutoBlocked
		next.ConfidenceScore = 0.92
		next.InvestigationLayers = model.UnionLayers(current.InvestigationLayers, model.LayerMLModels, model.LayerLLMReasoning)
		return &next, nil
	})

	require.NoError(t, err)
	assert.Equal(t, model.StatusAutoBlocked, got.Status)
	assert.Equal(t, []string{model.LayerRuleBased, model.LayerMLModels, model.LayerLLMReasoning}, got.InvestigationLayers)
	assert.True(t, got.UpdatedAt.After(c.UpdatedAt) || got.UpdatedAt.Equal(c.UpdatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM fraud_cases WHERE case_id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(rowColumns))
	mock.ExpectRollback()

	_, err := store.Update(t.Context(), "missing", func(current *model.Case) (*model.Case, error) {
		return current, nil
	})

	assert.ErrorIs(t, err, casestore.ErrCaseNotFound)
}
