package deposit

import (
	"tablebook/internal/config"
	"tablebook/internal/models"
)

// Evaluate decides whether a deposit or hold is required for a booking.
// It is a pure function of settings, date and party size so the result
// can be shown at request time and re-verified before charging.
//
// Order of evaluation: globally disabled wins, then the first special
// rule whose date range and party-size threshold both match, then the
// global rule.
func Evaluate(settings *config.BookingSettings, date string, partySize int) models.DepositInfo {
	policy := settings.Deposit
	if !policy.Enabled {
		return models.DepositInfo{Source: "none", Type: policy.Type}
	}

	for _, rule := range policy.SpecialRules {
		if !ruleMatches(rule, date, partySize) {
			continue
		}
		return models.DepositInfo{
			Required: true,
			Amount:   rule.Amount,
			MinParty: rule.MinPartySize,
			Type:     policy.Type,
			Source:   "special",
			Label:    rule.Label,
			Message:  rule.Message,
		}
	}

	if partySize >= policy.MinPartySize {
		return models.DepositInfo{
			Required: true,
			Amount:   policy.Amount,
			MinParty: policy.MinPartySize,
			Type:     policy.Type,
			Source:   "global",
			Label:    defaultLabel(policy.Type),
			Message:  defaultMessage(policy.Type),
		}
	}

	return models.DepositInfo{
		MinParty: policy.MinPartySize,
		Type:     policy.Type,
		Source:   "none",
	}
}

func ruleMatches(rule config.DepositRule, date string, partySize int) bool {
	// Date strings are YYYY-MM-DD so lexical comparison is date order.
	if rule.StartDate != "" && date < rule.StartDate {
		return false
	}
	if rule.EndDate != "" && date > rule.EndDate {
		return false
	}
	if rule.MinPartySize > 0 && partySize < rule.MinPartySize {
		return false
	}
	return true
}

func defaultLabel(t models.PaymentType) string {
	if t == models.PaymentDeposit {
		return "Reservation deposit"
	}
	return "Card hold"
}

func defaultMessage(t models.PaymentType) string {
	if t == models.PaymentDeposit {
		return "A deposit is required to confirm this reservation."
	}
	return "A temporary hold will be placed on your card and released after your visit."
}
