// Package casestore is the Case Store: the single transactional source
// of truth for Case records, enforcing the status state machine. All
// mutations go through Create or Update. Create is a single INSERT
// guarded by the unique trigger_transaction_id; Update takes a
// row-level lock (SELECT ... FOR UPDATE) on the case being touched and
// commits atomically.
package casestore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/deriv-labs/fraud-triage/model"
)

var (
	ErrDuplicateTrigger = errors.New("case already exists for trigger_transaction_id")
	ErrCaseNotFound     = errors.New("case not found")
)

const uniqueViolation = "23505"

// Store is the Case Store.
type Store struct {
	db *sqlx.DB
}

// New wraps an existing *sqlx.DB (or sqlx.NewDb(sqlMockDB, "postgres")
// in tests) as a Store.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres at dsn and wraps it as a Store.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// ─── JSON column helpers ────────────────────────────────────

type jsonMap map[string]interface{}

func (m jsonMap) Value() (driver.Value, error) {
	if m == nil {
		m = jsonMap{}
	}
	return json.Marshal(map[string]interface{}(m))
}

func (m *jsonMap) Scan(src interface{}) error {
	*m = jsonMap{}
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		if s, ok2 := src.(string); ok2 {
			b = []byte(s)
		} else {
			return errors.New("casestore: unsupported Scan type for jsonMap")
		}
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, (*map[string]interface{})(m))
}

type jsonStrings []string

func (s jsonStrings) Value() (driver.Value, error) {
	if s == nil {
		s = jsonStrings{}
	}
	return json.Marshal([]string(s))
}

func (s *jsonStrings) Scan(src interface{}) error {
	*s = jsonStrings{}
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		if str, ok2 := src.(string); ok2 {
			b = []byte(str)
		} else {
			return errors.New("casestore: unsupported Scan type for jsonStrings")
		}
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, (*[]string)(s))
}

// row is the sqlx scan target for fraud_cases, mirroring schema.go.
type row struct {
	CaseID               string         `db:"case_id"`
	UserID               string         `db:"user_id"`
	TriggerTransactionID string         `db:"trigger_transaction_id"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
	ResolvedAt           sql.NullTime   `db:"resolved_at"`
	Status               string         `db:"status"`
	ConfidenceScore      float64        `db:"confidence_score"`
	FraudProbability     float64        `db:"fraud_probability"`
	TriggeredBy          string         `db:"triggered_by"`
	InvestigationLayers  jsonStrings    `db:"investigation_layers"`
	DetectionSignals     jsonMap        `db:"detection_signals"`
	TransactionSummary   jsonMap        `db:"transaction_summary"`
	IdentityFlags        jsonMap        `db:"identity_flags"`
	BehavioralFlags      jsonMap        `db:"behavioral_flags"`
	NetworkFlags         jsonMap        `db:"network_flags"`
	AISignals            jsonMap        `db:"ai_signals"`
	AIReasoning          sql.NullString `db:"ai_reasoning"`
	AIRecommendations    sql.NullString `db:"ai_recommendations"`
	AssignedTo           sql.NullString `db:"assigned_to"`
	HumanDecision        sql.NullString `db:"human_decision"`
	ResolutionNotes      sql.NullString `db:"resolution_notes"`
	RelatedAccounts      jsonStrings    `db:"related_accounts"`
	FraudRingID          sql.NullString `db:"fraud_ring_id"`
}

func nullableStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func fromModel(c *model.Case) row {
	var resolvedAt sql.NullTime
	if c.ResolvedAt != nil {
		resolvedAt = sql.NullTime{Time: *c.ResolvedAt, Valid: true}
	}
	return row{
		CaseID:               c.CaseID,
		UserID:               c.UserID,
		TriggerTransactionID: c.TriggerTransactionID,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		ResolvedAt:           resolvedAt,
		Status:               string(c.Status),
		ConfidenceScore:      model.ClampUnit(c.ConfidenceScore),
		FraudProbability:     model.ClampUnit(c.FraudProbability),
		TriggeredBy:          string(c.TriggeredBy),
		InvestigationLayers:  jsonStrings(model.UnionLayers(c.InvestigationLayers)),
		DetectionSignals:     jsonMap(orEmpty(c.DetectionSignals)),
		TransactionSummary:   jsonMap(orEmpty(c.TransactionSummary)),
		IdentityFlags:        jsonMap(orEmpty(c.IdentityFlags)),
		BehavioralFlags:      jsonMap(orEmpty(c.BehavioralFlags)),
		NetworkFlags:         jsonMap(orEmpty(c.NetworkFlags)),
		AISignals:            jsonMap(orEmpty(c.AISignals)),
		AIReasoning:          nullableStr(c.AIReasoning),
		AIRecommendations:    nullableStr(c.AIRecommendations),
		AssignedTo:           nullableStr(c.AssignedTo),
		HumanDecision:        nullableStr(c.HumanDecision),
		ResolutionNotes:      nullableStr(c.ResolutionNotes),
		RelatedAccounts:      jsonStrings(orEmptySlice(c.RelatedAccounts)),
		FraudRingID:          nullableStr(c.FraudRingID),
	}
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r row) toModel() *model.Case {
	var resolvedAt *time.Time
	if r.ResolvedAt.Valid {
		t := r.ResolvedAt.Time
		resolvedAt = &t
	}
	return &model.Case{
		CaseID:               r.CaseID,
		UserID:               r.UserID,
		TriggerTransactionID: r.TriggerTransactionID,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		ResolvedAt:           resolvedAt,
		Status:               model.CaseStatus(r.Status),
		ConfidenceScore:      r.ConfidenceScore,
		FraudProbability:     r.FraudProbability,
		TriggeredBy:          model.TriggeredBy(r.TriggeredBy),
		InvestigationLayers:  []string(r.InvestigationLayers),
		DetectionSignals:     map[string]interface{}(r.DetectionSignals),
		TransactionSummary:   map[string]interface{}(r.TransactionSummary),
		IdentityFlags:        map[string]interface{}(r.IdentityFlags),
		BehavioralFlags:      map[string]interface{}(r.BehavioralFlags),
		NetworkFlags:         map[string]interface{}(r.NetworkFlags),
		AISignals:            map[string]interface{}(r.AISignals),
		AIReasoning:          strPtr(r.AIReasoning),
		AIRecommendations:    strPtr(r.AIRecommendations),
		AssignedTo:           strPtr(r.AssignedTo),
		HumanDecision:        strPtr(r.HumanDecision),
		ResolutionNotes:      strPtr(r.ResolutionNotes),
		RelatedAccounts:      []string(r.RelatedAccounts),
		FraudRingID:          strPtr(r.FraudRingID),
	}
}

const insertSQL = `
INSERT INTO fraud_cases (
    case_id, user_id, trigger_transaction_id, created_at, updated_at, resolved_at,
    status, confidence_score, fraud_probability, triggered_by, investigation_layers,
    detection_signals, transaction_summary, identity_flags, behavioral_flags,
    network_flags, ai_signals, ai_reasoning, ai_recommendations,
    assigned_to, human_decision, resolution_notes, related_accounts, fraud_ring_id
) VALUES (
    :case_id, :user_id, :trigger_transaction_id, :created_at, :updated_at, :resolved_at,
    :status, :confidence_score, :fraud_probability, :triggered_by, :investigation_layers,
    :detection_signals, :transaction_summary, :identity_flags, :behavioral_flags,
    :network_flags, :ai_signals, :ai_reasoning, :ai_recommendations,
    :assigned_to, :human_decision, :resolution_notes, :related_accounts, :fraud_ring_id
)`

// Create inserts a new Case. If a case already exists for the same
// TriggerTransactionID, returns ErrDuplicateTrigger and the caller
// should fetch the existing row via GetByTriggerTransactionID — this
// is how redelivery of an already-triaged event stays idempotent.
func (s *Store) Create(ctx context.Context, c *model.Case) (*model.Case, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt

	r := fromModel(c)
	_, err := s.db.NamedExecContext(ctx, insertSQL, r)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateTrigger
		}
		return nil, err
	}
	return r.toModel(), nil
}

// GetByCaseID fetches a Case by its primary key.
func (s *Store) GetByCaseID(ctx context.Context, caseID string) (*model.Case, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT * FROM fraud_cases WHERE case_id = $1`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.toModel(), nil
}

// GetByTriggerTransactionID fetches a Case by its idempotency key.
func (s *Store) GetByTriggerTransactionID(ctx context.Context, txID string) (*model.Case, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT * FROM fraud_cases WHERE trigger_transaction_id = $1`, txID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.toModel(), nil
}

// ListByUser returns every Case for userID.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*model.Case, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows, `SELECT * FROM fraud_cases WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

// ListByStatus returns every Case whose status is in statuses.
func (s *Store) ListByStatus(ctx context.Context, statuses []model.CaseStatus) ([]*model.Case, error) {
	return s.listByStatus(ctx, statuses, false)
}

// ListByStatusDescCreated is ListByStatus ordered by created_at
// descending, used by the GET /dashboard/queue endpoint.
func (s *Store) ListByStatusDescCreated(ctx context.Context, statuses []model.CaseStatus) ([]*model.Case, error) {
	return s.listByStatus(ctx, statuses, true)
}

func (s *Store) listByStatus(ctx context.Context, statuses []model.CaseStatus, desc bool) ([]*model.Case, error) {
	strs := make([]string, len(statuses))
	for i, st := range statuses {
		strs[i] = string(st)
	}
	query := `SELECT * FROM fraud_cases WHERE status = ANY($1)`
	if desc {
		query += ` ORDER BY created_at DESC`
	}
	var rows []row
	err := s.db.SelectContext(ctx, &rows, query, pq.Array(strs))
	if err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func toModels(rows []row) []*model.Case {
	out := make([]*model.Case, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

// Stats returns the count of cases per status.
func (s *Store) Stats(ctx context.Context) (map[model.CaseStatus]int, error) {
	type statRow struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	var rows []statRow
	err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM fraud_cases GROUP BY status`)
	if err != nil {
		return nil, err
	}
	out := make(map[model.CaseStatus]int, len(rows))
	for _, r := range rows {
		out[model.CaseStatus(r.Status)] = r.Count
	}
	return out, nil
}

const updateSQL = `
UPDATE fraud_cases SET
    updated_at = :updated_at,
    resolved_at = :resolved_at,
    status = :status,
    confidence_score = :confidence_score,
    fraud_probability = :fraud_probability,
    triggered_by = :triggered_by,
    investigation_layers = :investigation_layers,
    detection_signals = :detection_signals,
    transaction_summary = :transaction_summary,
    identity_flags = :identity_flags,
    behavioral_flags = :behavioral_flags,
    network_flags = :network_flags,
    ai_signals = :ai_signals,
    ai_reasoning = :ai_reasoning,
    ai_recommendations = :ai_recommendations,
    assigned_to = :assigned_to,
    human_decision = :human_decision,
    resolution_notes = :resolution_notes,
    related_accounts = :related_accounts,
    fraud_ring_id = :fraud_ring_id
WHERE case_id = :case_id
`

// Mutator transforms the locked, current state of a Case into its
// desired next state. It must not change CaseID, UserID,
// TriggerTransactionID, or CreatedAt.
type Mutator func(current *model.Case) (*model.Case, error)

// Update locks the case row for caseID, applies mutate, validates the
// resulting transition against the status state machine, and commits.
// Returns ErrCaseNotFound or ErrIllegalTransition; on either, the
// mutation is rolled back and the stored record is untouched.
func (s *Store) Update(ctx context.Context, caseID string, mutate Mutator) (*model.Case, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	var r row
	err = tx.GetContext(ctx, &r, `SELECT * FROM fraud_cases WHERE case_id = $1 FOR UPDATE`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, err
	}
	current := r.toModel()

	next, err := mutate(current)
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(current.Status, next.Status) {
		return nil, model.ErrIllegalTransition
	}

	next.UpdatedAt = time.Now().UTC()
	if next.Status == model.StatusResolved && next.ResolvedAt == nil {
		t := next.UpdatedAt
		next.ResolvedAt = &t
	}

	nr := fromModel(next)
	if _, err := tx.NamedExecContext(ctx, updateSQL, nr); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next, nil
}
