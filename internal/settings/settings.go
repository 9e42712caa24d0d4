// Package settings stores the operator-tunable automation switches. A single
// row backs the whole engine; every loop re-reads it on each pass so changes
// made through the API take effect without a restart.
package settings

import "time"

// AutomationSettings is the singleton automation configuration.
type AutomationSettings struct {
	EternalOnline  bool          `json:"eternal_online"`
	OnlineInterval time.Duration `json:"online_interval"`

	AutoBump     bool          `json:"auto_bump"`
	BumpInterval time.Duration `json:"bump_interval"`

	ReviewReminder  bool          `json:"review_reminder"`
	ReviewDelay     time.Duration `json:"review_delay"`
	ReviewMessageRU string        `json:"review_message_ru"`
	ReviewMessageEN string        `json:"review_message_en"`

	AutoEscalate      bool          `json:"auto_escalate"`
	EscalateInterval  time.Duration `json:"escalate_interval"`
	EscalateMaxOrders int           `json:"escalate_max_orders"`
	EscalateTemplate  string        `json:"escalate_template"`

	StatsInterval time.Duration `json:"stats_interval"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Defaults returns the settings seeded on first start.
func Defaults() AutomationSettings {
	return AutomationSettings{
		EternalOnline:     true,
		OnlineInterval:    4 * time.Minute,
		AutoBump:          false,
		BumpInterval:      4 * time.Hour,
		ReviewReminder:    true,
		ReviewDelay:       time.Hour,
		AutoEscalate:      false,
		EscalateInterval:  6 * time.Hour,
		EscalateMaxOrders: 5,
		StatsInterval:     time.Hour,
	}
}
