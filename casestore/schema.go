package casestore

// FraudCasesSchema is the DDL for the fraud_cases table. The inbound
// SQL schema (users, transactions, devices, ip_addresses, ...) is an
// external collaborator — the Case Store only owns this one table,
// and only ever talks to the rest of the schema through values
// already embedded on the Case by the Triage Pipeline.
const FraudCasesSchema = `
CREATE TABLE IF NOT EXISTS fraud_cases (
    case_id                 TEXT PRIMARY KEY,
    user_id                 TEXT NOT NULL,
    trigger_transaction_id  TEXT NOT NULL UNIQUE,

    created_at              TIMESTAMPTZ NOT NULL,
    updated_at              TIMESTAMPTZ NOT NULL,
    resolved_at             TIMESTAMPTZ,

    status                  TEXT NOT NULL,

    confidence_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
    fraud_probability       DOUBLE PRECISION NOT NULL DEFAULT 0,

    triggered_by            TEXT NOT NULL,
    investigation_layers    JSONB NOT NULL DEFAULT '[]',

    detection_signals       JSONB NOT NULL DEFAULT '{}',
    transaction_summary     JSONB NOT NULL DEFAULT '{}',
    identity_flags          JSONB NOT NULL DEFAULT '{}',
    behavioral_flags        JSONB NOT NULL DEFAULT '{}',
    network_flags           JSONB NOT NULL DEFAULT '{}',
    ai_signals              JSONB NOT NULL DEFAULT '{}',

    ai_reasoning            TEXT,
    ai_recommendations      TEXT,

    assigned_to             TEXT,
    human_decision          TEXT,
    resolution_notes        TEXT,

    related_accounts        JSONB NOT NULL DEFAULT '[]',
    fraud_ring_id           TEXT
);

CREATE INDEX IF NOT EXISTS idx_fraud_cases_user_id ON fraud_cases (user_id);
CREATE INDEX IF NOT EXISTS idx_fraud_cases_status ON fraud_cases (status);
CREATE INDEX IF NOT EXISTS idx_fraud_cases_status_created_at ON fraud_cases (status, created_at DESC);
`
