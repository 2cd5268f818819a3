package triage

import "github.com/deriv-labs/fraud-triage/model"

// The source relies on reflection to turn profile structs into
// free-form maps; here each evidence map is built explicitly, field
// by field, per profile.

func transactionSummary(ev model.TransactionEvent) map[string]interface{} {
	return map[string]interface{}{
		"transaction_id": ev.TransactionID,
		"amount":         ev.Amount.String(),
		"currency":       ev.Currency,
		"type":           string(ev.Type),
		"payment_method": ev.PaymentMethod,
		"provider":       ev.Provider,
		"timestamp":      ev.Timestamp,
	}
}

func identityFlags(ev model.TransactionEvent) map[string]interface{} {
	return map[string]interface{}{
		"kyc_verified":            ev.User.KYCVerified,
		"account_age_days":        ev.User.AccountAgeDays,
		"declared_monthly_income": ev.User.DeclaredMonthlyIncome.String(),
		"country":                 ev.User.Country,
		"document_confidence":     ev.Document.ConfidenceScore,
		"document_forged":         ev.Document.Forged,
		"document_ai_generated":   ev.Document.AIGenerated,
	}
}

func behavioralFlags(ev model.TransactionEvent) map[string]interface{} {
	return map[string]interface{}{
		"total_users_count": ev.Device.TotalUsersCount,
		"is_emulator":       ev.Device.IsEmulator,
		"is_vpn":            ev.Device.IsVPN,
		"is_proxy":          ev.Device.IsProxy,
		"is_tor":            ev.Device.IsTor,
		"velocity_anomaly":  ev.Flags.VelocityAnomaly,
		"amount_anomaly":    ev.Flags.AmountAnomaly,
		"geo_anomaly":       ev.Flags.GeoAnomaly,
	}
}

func networkFlags(ev model.TransactionEvent) map[string]interface{} {
	return map[string]interface{}{
		"device_id":          ev.DeviceID,
		"ip_address":         ev.IPAddress,
		"country_code":       ev.Ip.CountryCode,
		"sanctioned_country": ev.Ip.SanctionedCountry,
		"high_risk_country":  ev.Ip.HighRiskCountry,
		"is_datacenter":      ev.Ip.IsDatacenter,
		"vpn":                ev.Ip.VPN,
		"tor":                ev.Ip.Tor,
	}
}
