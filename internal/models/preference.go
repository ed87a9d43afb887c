package models

import "time"

// Preference stores a single runtime toggle as a key-value pair. Values are
// plain strings; boolean toggles hold "true" or "false".
type Preference struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preference keys understood by the pipeline. Unset keys read as
// DefaultPreferenceValue, so a fresh database has everything enabled.
const (
	PrefSourceHackerNews = "SOURCE_HN_ENABLED"
	PrefSourceReddit     = "SOURCE_REDDIT_ENABLED"
	PrefSourceRSS        = "SOURCE_RSS_ENABLED"

	PrefPersonaGenAI   = "PERSONA_GENAI_NEWS_ENABLED"
	PrefPersonaProduct = "PERSONA_PRODUCT_IDEAS_ENABLED"
	PrefPersonaFinance = "PERSONA_FINANCE_ENABLED"

	PrefDeliveryEmail    = "DELIVERY_EMAIL_ENABLED"
	PrefDeliveryTelegram = "DELIVERY_TELEGRAM_ENABLED"
)

// DefaultPreferenceValue is the value every known key reads as when unset.
const DefaultPreferenceValue = "true"

// KnownPreferenceKeys returns every key the pipeline consults, in display
// order. The API lists these with their effective values.
func KnownPreferenceKeys() []string {
	return []string{
		PrefSourceHackerNews,
		PrefSourceReddit,
		PrefSourceRSS,
		PrefPersonaGenAI,
		PrefPersonaProduct,
		PrefPersonaFinance,
		PrefDeliveryEmail,
		PrefDeliveryTelegram,
	}
}
