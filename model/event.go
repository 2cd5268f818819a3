package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates the kinds of transaction an event can carry.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTrade      TransactionType = "TRADE"
)

// UserProfile carries KYC-relevant facts about the transacting user.
type UserProfile struct {
	UserID                string          `json:"user_id"`
	KYCVerified           bool            `json:"kyc_verified"`
	AccountAgeDays        int             `json:"account_age_days"`
	DeclaredMonthlyIncome decimal.Decimal `json:"declared_monthly_income"`
	Country               string          `json:"country"`
}

// DeviceProfile carries device-fingerprinting facts.
type DeviceProfile struct {
	DeviceID        string `json:"device_id"`
	TotalUsersCount int    `json:"total_users_count"`
	IsEmulator      bool   `json:"is_emulator"`
	IsVPN           bool   `json:"is_vpn"`
	IsProxy         bool   `json:"is_proxy"`
	IsTor           bool   `json:"is_tor"`
}

// IpProfile carries network-fingerprinting facts about the source IP.
type IpProfile struct {
	IPAddress         string `json:"ip_address"`
	CountryCode       string `json:"country_code"`
	SanctionedCountry bool   `json:"sanctioned_country"`
	HighRiskCountry   bool   `json:"high_risk_country"`
	IsDatacenter      bool   `json:"is_datacenter"`
	VPN               bool   `json:"vpn"`
	Tor               bool   `json:"tor"`
}

// DocumentProfile carries identity-document verification facts.
type DocumentProfile struct {
	ConfidenceScore float64 `json:"confidence_score"`
	Forged          bool    `json:"forged"`
	AIGenerated     bool    `json:"ai_generated"`
}

// Flags are cheap, precomputed anomaly booleans upstream systems attach
// to the event before it reaches the triage pipeline.
type Flags struct {
	VelocityAnomaly   bool `json:"velocity_anomaly"`
	AmountAnomaly     bool `json:"amount_anomaly"`
	GeoAnomaly        bool `json:"geo_anomaly"`
}

// TransactionEvent is the immutable unit of work read off the inbound
// stream. It is owned by whichever Triage Pipeline worker is processing
// it and is discarded once the resulting Case is persisted.
type TransactionEvent struct {
	TransactionID string          `json:"transaction_id"`
	UserID        string          `json:"user_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Type          TransactionType `json:"type"`
	PaymentMethod string          `json:"payment_method"`
	Provider      string          `json:"provider"`

	IPAddress string `json:"ip_address"`
	Country   string `json:"country_code"`
	DeviceID  string `json:"device_id"`

	User     UserProfile     `json:"user_profile"`
	Device   DeviceProfile   `json:"device_profile"`
	Ip       IpProfile       `json:"ip_profile"`
	Document DocumentProfile `json:"document_profile"`

	Flags Flags `json:"flags"`
}
