package httpapi

import (
	"time"

	"marketpilot/internal/flows"
	"marketpilot/internal/orders"
	"marketpilot/internal/settings"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type orderActionRequest struct {
	Action string `json:"action" binding:"required,orderaction"`
}

type orderResponse struct {
	MarketOrderID string            `json:"market_order_id"`
	BuyerName     string            `json:"buyer_name"`
	ItemName      string            `json:"item_name"`
	Price         float64           `json:"price"`
	Currency      string            `json:"currency"`
	Status        orders.Status     `json:"status"`
	FlowID        string            `json:"flow_id,omitempty"`
	FlowStep      string            `json:"flow_step,omitempty"`
	CollectedData map[string]string `json:"collected_data,omitempty"`
	BuyerLang     string            `json:"buyer_lang"`
	EscalatedAt   *time.Time        `json:"escalated_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toOrderResponse(o orders.Order) orderResponse {
	return orderResponse{
		MarketOrderID: o.MarketOrderID,
		BuyerName:     o.BuyerName,
		ItemName:      o.ItemName,
		Price:         o.Price,
		Currency:      o.Currency,
		Status:        o.Status,
		FlowID:        o.FlowID,
		FlowStep:      o.FlowState.Step,
		CollectedData: o.CollectedData,
		BuyerLang:     o.BuyerLang,
		EscalatedAt:   o.EscalatedAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type bindingRequest struct {
	FlowID       string            `json:"flow_id" binding:"required"`
	LotID        *int64            `json:"lot_id"`
	Keyword      string            `json:"keyword"`
	NamePattern  string            `json:"name_pattern"`
	TextOverride map[string]string `json:"text_overrides"`
	Enabled      bool              `json:"enabled"`
}

func (r bindingRequest) toBinding(id int64) flows.Binding {
	return flows.Binding{
		ID:           id,
		FlowID:       r.FlowID,
		LotID:        r.LotID,
		Keyword:      r.Keyword,
		NamePattern:  r.NamePattern,
		TextOverride: r.TextOverride,
		Enabled:      r.Enabled,
	}
}

type settingsRequest struct {
	EternalOnline     bool   `json:"eternal_online"`
	OnlineIntervalSec int64  `json:"online_interval_secs" binding:"min=0"`
	AutoBump          bool   `json:"auto_bump"`
	BumpIntervalSec   int64  `json:"bump_interval_secs" binding:"min=0"`
	ReviewReminder    bool   `json:"review_reminder"`
	ReviewDelaySec    int64  `json:"review_delay_secs" binding:"min=0"`
	ReviewMessageRU   string `json:"review_message_ru"`
	ReviewMessageEN   string `json:"review_message_en"`
	AutoEscalate      bool   `json:"auto_escalate"`
	EscalateIntSec    int64  `json:"escalate_interval_secs" binding:"min=0"`
	EscalateMaxOrders int    `json:"escalate_max_orders" binding:"min=0,max=50"`
	EscalateTemplate  string `json:"escalate_template"`
	StatsIntervalSec  int64  `json:"stats_interval_secs" binding:"min=0"`
}

func (r settingsRequest) toSettings() settings.AutomationSettings {
	s := settings.Defaults()
	s.EternalOnline = r.EternalOnline
	s.AutoBump = r.AutoBump
	s.ReviewReminder = r.ReviewReminder
	s.ReviewMessageRU = r.ReviewMessageRU
	s.ReviewMessageEN = r.ReviewMessageEN
	s.AutoEscalate = r.AutoEscalate
	s.EscalateTemplate = r.EscalateTemplate

	if r.OnlineIntervalSec > 0 {
		s.OnlineInterval = time.Duration(r.OnlineIntervalSec) * time.Second
	}
	if r.BumpIntervalSec > 0 {
		s.BumpInterval = time.Duration(r.BumpIntervalSec) * time.Second
	}
	if r.ReviewDelaySec > 0 {
		s.ReviewDelay = time.Duration(r.ReviewDelaySec) * time.Second
	}
	if r.EscalateIntSec > 0 {
		s.EscalateInterval = time.Duration(r.EscalateIntSec) * time.Second
	}
	if r.EscalateMaxOrders > 0 {
		s.EscalateMaxOrders = r.EscalateMaxOrders
	}
	if r.StatsIntervalSec > 0 {
		s.StatsInterval = time.Duration(r.StatsIntervalSec) * time.Second
	}
	return s
}

type settingsResponse struct {
	EternalOnline     bool      `json:"eternal_online"`
	OnlineIntervalSec int64     `json:"online_interval_secs"`
	AutoBump          bool      `json:"auto_bump"`
	BumpIntervalSec   int64     `json:"bump_interval_secs"`
	ReviewReminder    bool      `json:"review_reminder"`
	ReviewDelaySec    int64     `json:"review_delay_secs"`
	ReviewMessageRU   string    `json:"review_message_ru"`
	ReviewMessageEN   string    `json:"review_message_en"`
	AutoEscalate      bool      `json:"auto_escalate"`
	EscalateIntSec    int64     `json:"escalate_interval_secs"`
	EscalateMaxOrders int       `json:"escalate_max_orders"`
	EscalateTemplate  string    `json:"escalate_template"`
	StatsIntervalSec  int64     `json:"stats_interval_secs"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toSettingsResponse(s settings.AutomationSettings) settingsResponse {
	return settingsResponse{
		EternalOnline:     s.EternalOnline,
		OnlineIntervalSec: int64(s.OnlineInterval / time.Second),
		AutoBump:          s.AutoBump,
		BumpIntervalSec:   int64(s.BumpInterval / time.Second),
		ReviewReminder:    s.ReviewReminder,
		ReviewDelaySec:    int64(s.ReviewDelay / time.Second),
		ReviewMessageRU:   s.ReviewMessageRU,
		ReviewMessageEN:   s.ReviewMessageEN,
		AutoEscalate:      s.AutoEscalate,
		EscalateIntSec:    int64(s.EscalateInterval / time.Second),
		EscalateMaxOrders: s.EscalateMaxOrders,
		EscalateTemplate:  s.EscalateTemplate,
		StatsIntervalSec:  int64(s.StatsInterval / time.Second),
		UpdatedAt:         s.UpdatedAt,
	}
}
