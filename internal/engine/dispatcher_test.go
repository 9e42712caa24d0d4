package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"marketpilot/internal/flows"
	"marketpilot/internal/marketplace"
	"marketpilot/internal/orders"
	"marketpilot/internal/settings"
	"marketpilot/platform/events"
	"marketpilot/platform/logger"
)

type sentMessage struct {
	ChatID string
	Text   string
}

type fakeMarket struct {
	mu      sync.Mutex
	sent    []sentMessage
	locale  string
	rating  marketplace.Rating
	ratings []marketplace.Rating
}

func (m *fakeMarket) Account() marketplace.AccountInfo {
	return marketplace.AccountInfo{UserID: 1000, Username: "seller"}
}

func (m *fakeMarket) SendMessage(_ context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *fakeMarket) ChatLocale(context.Context, string) (string, error) {
	return m.locale, nil
}

// SellerRating serves the queued ratings in order, with the last one
// sticking; an empty queue serves the fixed rating.
func (m *fakeMarket) SellerRating(context.Context) (marketplace.Rating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ratings) > 0 {
		r := m.ratings[0]
		if len(m.ratings) > 1 {
			m.ratings = m.ratings[1:]
		}
		return r, nil
	}
	return m.rating, nil
}

func (m *fakeMarket) queueRatings(rs ...marketplace.Rating) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings = rs
}

func (m *fakeMarket) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type fakeStore struct {
	mu     sync.Mutex
	orders map[string]orders.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[string]orders.Order{}}
}

func (s *fakeStore) Insert(_ context.Context, p orders.CreateOrderParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[p.MarketOrderID]; exists {
		return false, nil
	}
	s.orders[p.MarketOrderID] = orders.Order{
		MarketOrderID: p.MarketOrderID,
		BuyerID:       p.BuyerID,
		BuyerName:     p.BuyerName,
		ChatID:        p.ChatID,
		ItemName:      p.ItemName,
		Price:         p.Price,
		Currency:      p.Currency,
		Status:        p.Status,
		FlowID:        p.FlowID,
		BindingID:     p.BindingID,
		BuyerLang:     p.BuyerLang,
		FlowState:     orders.FlowState{Data: map[string]string{}},
	}
	return true, nil
}

func (s *fakeStore) GetByMarketID(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (s *fakeStore) LatestAwaitingByChat(_ context.Context, chatID string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ChatID == chatID && o.Status == orders.StatusWaitingData {
			return o, nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

func (s *fakeStore) LatestAwaitingByBuyer(_ context.Context, buyerID int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.BuyerID == buyerID && o.Status == orders.StatusWaitingData {
			return o, nil
		}
	}
	return orders.Order{}, orders.ErrNotFound
}

func (s *fakeStore) SetStatus(_ context.Context, id string, status orders.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	s.orders[id] = o
	return nil
}

func (s *fakeStore) ConfirmUnlessRefunded(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status == orders.StatusRefunded || o.Status == orders.StatusConfirmed {
		return false, nil
	}
	o.Status = orders.StatusConfirmed
	s.orders[id] = o
	return true, nil
}

func (s *fakeStore) MarkDispute(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != orders.StatusConfirmed {
		return false, nil
	}
	o.Status = orders.StatusDispute
	s.orders[id] = o
	return true, nil
}

func (s *fakeStore) SetFlowState(_ context.Context, id string, state orders.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.FlowState = state
	s.orders[id] = o
	return nil
}

func (s *fakeStore) CompleteCollection(_ context.Context, id string, state orders.FlowState, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = orders.StatusDataCollected
	o.FlowState = state
	o.CollectedData = data
	s.orders[id] = o
	return nil
}

func (s *fakeStore) get(id string) orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

type fakeScheduler struct {
	mu        sync.Mutex
	reminders []string
}

func (f *fakeScheduler) ScheduleReviewReminder(_ context.Context, id string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, id)
	return nil
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reminders)
}

type fakeSettings struct {
	cfg settings.AutomationSettings
}

func (f fakeSettings) Get(context.Context) (settings.AutomationSettings, error) {
	return f.cfg, nil
}

type fakeBindings struct {
	bindings []flows.Binding
}

func (f fakeBindings) ListEnabled(context.Context) ([]flows.Binding, error) {
	return f.bindings, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) PublishSync(ctx context.Context, ev events.Event) error {
	b.Publish(ctx, ev)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.EventName()
	}
	return out
}

func newTestDispatcher(market *fakeMarket, store *fakeStore, sched *fakeScheduler, bus *recordingBus) *Dispatcher {
	d := New(
		market,
		store,
		fakeBindings{},
		flows.DefaultRegistry(),
		sched,
		fakeSettings{cfg: settings.Defaults()},
		bus,
		"https://market.example",
		logger.New("development"),
	)
	d.probeSettle = time.Millisecond
	return d
}

func newOrderEvent(id, chatID, itemName string) marketplace.Event {
	return marketplace.Event{
		Type: marketplace.EventNewOrder,
		Order: marketplace.OrderSummary{
			ID: id, BuyerID: 42, BuyerName: "buyer", ChatID: chatID,
			ItemName: itemName, Price: 9.99, Currency: "USD",
			State: marketplace.OrderStatePaid,
		},
	}
}

func TestNewOrderStartsFlowIdempotently(t *testing.T) {
	market := &fakeMarket{locale: "en"}
	store := newFakeStore()
	sched := &fakeScheduler{}
	bus := &recordingBus{}
	d := newTestDispatcher(market, store, sched, bus)
	ctx := context.Background()

	ev := newOrderEvent("ORDER001", "chat-1", "Spotify Premium 1 month")
	if err := d.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	order := store.get("ORDER001")
	if order.Status != orders.StatusWaitingData {
		t.Fatalf("expected waiting_data, got %q", order.Status)
	}
	if order.FlowID != "spotify" {
		t.Fatalf("expected spotify flow, got %q", order.FlowID)
	}
	if order.BuyerLang != "en" {
		t.Fatalf("expected en from chat locale, got %q", order.BuyerLang)
	}
	sent := market.messages()
	if len(sent) != 1 || !strings.Contains(sent[0].Text, "email") {
		t.Fatalf("expected first prompt, got %+v", sent)
	}

	// Duplicate delivery of the same event does nothing.
	if err := d.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("duplicate handle: %v", err)
	}
	if got := len(market.messages()); got != 1 {
		t.Fatalf("duplicate event sent %d extra messages", got-1)
	}
}

func TestNewOrderWithoutFlowAcknowledges(t *testing.T) {
	market := &fakeMarket{locale: "ru"}
	store := newFakeStore()
	d := newTestDispatcher(market, store, &fakeScheduler{}, &recordingBus{})

	ev := newOrderEvent("ORDER002", "chat-2", "Steam wallet top-up")
	if err := d.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	order := store.get("ORDER002")
	if order.Status != orders.StatusDataCollected {
		t.Fatalf("expected data_collected, got %q", order.Status)
	}
	if order.FlowID != "" {
		t.Fatalf("unexpected flow %q", order.FlowID)
	}
	if len(market.messages()) != 1 {
		t.Fatalf("expected acknowledgment message")
	}
}

func TestClosedEventConfirmsAndSchedulesReminderOnce(t *testing.T) {
	market := &fakeMarket{}
	store := newFakeStore()
	sched := &fakeScheduler{}
	d := newTestDispatcher(market, store, sched, &recordingBus{})
	ctx := context.Background()

	if err := d.HandleEvent(ctx, newOrderEvent("ORDER003", "chat-3", "Steam wallet")); err != nil {
		t.Fatalf("new order: %v", err)
	}

	closed := marketplace.Event{Type: marketplace.EventOrderStatus, OrderID: "ORDER003", State: marketplace.OrderStateClosed}
	if err := d.HandleEvent(ctx, closed); err != nil {
		t.Fatalf("closed: %v", err)
	}
	if store.get("ORDER003").Status != orders.StatusConfirmed {
		t.Fatalf("expected confirmed, got %q", store.get("ORDER003").Status)
	}
	if sched.count() != 1 {
		t.Fatalf("expected 1 reminder, got %d", sched.count())
	}

	// The confirmation system notice for the same order must not schedule a
	// second reminder.
	notice := marketplace.Event{Type: marketplace.EventChatMessage, Message: marketplace.ChatMessage{
		ChatID: "chat-3", System: true, Text: "Покупатель подтвердил заказ #ORDER003.",
	}}
	if err := d.HandleEvent(ctx, notice); err != nil {
		t.Fatalf("notice: %v", err)
	}
	if sched.count() != 1 {
		t.Fatalf("duplicate confirmation scheduled a second reminder")
	}
}

func TestRefundIsTerminal(t *testing.T) {
	market := &fakeMarket{}
	store := newFakeStore()
	sched := &fakeScheduler{}
	d := newTestDispatcher(market, store, sched, &recordingBus{})
	ctx := context.Background()

	if err := d.HandleEvent(ctx, newOrderEvent("ORDER004", "chat-4", "Steam wallet")); err != nil {
		t.Fatalf("new order: %v", err)
	}
	refunded := marketplace.Event{Type: marketplace.EventOrderStatus, OrderID: "ORDER004", State: marketplace.OrderStateRefunded}
	if err := d.HandleEvent(ctx, refunded); err != nil {
		t.Fatalf("refunded: %v", err)
	}
	if store.get("ORDER004").Status != orders.StatusRefunded {
		t.Fatalf("expected refunded, got %q", store.get("ORDER004").Status)
	}

	// A late closed event must not resurrect the order.
	closed := marketplace.Event{Type: marketplace.EventOrderStatus, OrderID: "ORDER004", State: marketplace.OrderStateClosed}
	if err := d.HandleEvent(ctx, closed); err != nil {
		t.Fatalf("closed after refund: %v", err)
	}
	if store.get("ORDER004").Status != orders.StatusRefunded {
		t.Fatalf("refund overridden by late confirmation")
	}
	if sched.count() != 0 {
		t.Fatalf("reminder scheduled for a refunded order")
	}
}

func TestPaidEventOnConfirmedOrderOpensDispute(t *testing.T) {
	market := &fakeMarket{}
	store := newFakeStore()
	bus := &recordingBus{}
	d := newTestDispatcher(market, store, &fakeScheduler{}, bus)
	ctx := context.Background()

	if err := d.HandleEvent(ctx, newOrderEvent("ORDER005", "chat-5", "Steam wallet")); err != nil {
		t.Fatalf("new order: %v", err)
	}
	if err := d.HandleEvent(ctx, marketplace.Event{
		Type: marketplace.EventOrderStatus, OrderID: "ORDER005", State: marketplace.OrderStateClosed,
	}); err != nil {
		t.Fatalf("closed: %v", err)
	}
	if err := d.HandleEvent(ctx, marketplace.Event{
		Type: marketplace.EventOrderStatus, OrderID: "ORDER005", State: marketplace.OrderStatePaid,
	}); err != nil {
		t.Fatalf("paid after confirm: %v", err)
	}

	if store.get("ORDER005").Status != orders.StatusDispute {
		t.Fatalf("expected dispute, got %q", store.get("ORDER005").Status)
	}
	var disputed bool
	for _, name := range bus.names() {
		if name == EventOrderDisputed {
			disputed = true
		}
	}
	if !disputed {
		t.Fatalf("dispute event not published: %v", bus.names())
	}
}

func TestBuyerMessagesDriveFlowToCompletion(t *testing.T) {
	market := &fakeMarket{locale: "en"}
	store := newFakeStore()
	bus := &recordingBus{}
	d := newTestDispatcher(market, store, &fakeScheduler{}, bus)
	ctx := context.Background()

	if err := d.HandleEvent(ctx, newOrderEvent("ORDER006", "chat-6", "ChatGPT Plus 1 month")); err != nil {
		t.Fatalf("new order: %v", err)
	}

	say := func(text string) {
		t.Helper()
		err := d.HandleEvent(ctx, marketplace.Event{
			Type: marketplace.EventChatMessage,
			Message: marketplace.ChatMessage{
				ChatID: "chat-6", AuthorID: 42, Author: "buyer", Text: text,
			},
		})
		if err != nil {
			t.Fatalf("message %q: %v", text, err)
		}
	}

	say("not-an-email")
	if store.get("ORDER006").FlowState.Step != "email" {
		t.Fatalf("invalid input advanced the flow")
	}

	say("buyer@example.com")
	say("+")

	order := store.get("ORDER006")
	if order.Status != orders.StatusDataCollected {
		t.Fatalf("expected data_collected, got %q", order.Status)
	}
	if order.CollectedData["email"] != "buyer@example.com" {
		t.Fatalf("collected data missing: %+v", order.CollectedData)
	}

	var collected bool
	for _, name := range bus.names() {
		if name == EventOrderDataCollected {
			collected = true
		}
	}
	if !collected {
		t.Fatalf("data collected event not published: %v", bus.names())
	}
}

func TestOwnAndUnhandledMessages(t *testing.T) {
	market := &fakeMarket{}
	store := newFakeStore()
	bus := &recordingBus{}
	d := newTestDispatcher(market, store, &fakeScheduler{}, bus)
	ctx := context.Background()

	// The seller's own messages are ignored outright.
	if err := d.HandleEvent(ctx, marketplace.Event{
		Type:    marketplace.EventChatMessage,
		Message: marketplace.ChatMessage{ChatID: "chat-7", AuthorID: 1000, Text: "reply from us"},
	}); err != nil {
		t.Fatalf("own message: %v", err)
	}
	if len(bus.names()) != 0 {
		t.Fatalf("own message published events: %v", bus.names())
	}

	// A buyer message with no awaiting order goes to the operator.
	if err := d.HandleEvent(ctx, marketplace.Event{
		Type:    marketplace.EventChatMessage,
		Message: marketplace.ChatMessage{ChatID: "chat-7", AuthorID: 55, Author: "stranger", Text: "hello?"},
	}); err != nil {
		t.Fatalf("unhandled message: %v", err)
	}
	names := bus.names()
	if len(names) != 1 || names[0] != EventUnhandledMessage {
		t.Fatalf("expected unhandled message event, got %v", names)
	}
}

func TestFeedbackNoticeAlertsOnlyOnRatingChange(t *testing.T) {
	market := &fakeMarket{rating: marketplace.Rating{Stars: 4.9, Reviews: 120}}
	store := newFakeStore()
	bus := &recordingBus{}
	d := newTestDispatcher(market, store, &fakeScheduler{}, bus)
	ctx := context.Background()

	notice := marketplace.Event{Type: marketplace.EventChatMessage, Message: marketplace.ChatMessage{
		ChatID: "chat-9", System: true, Text: "Покупатель оставил отзыв к заказу #ORDER00A.",
	}}

	// Feedback with an unchanged rating stays silent.
	if err := d.HandleEvent(ctx, notice); err != nil {
		t.Fatalf("notice: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if names := bus.names(); len(names) != 0 {
		t.Fatalf("operator alerted although the rating did not change: %v", names)
	}

	// A moved rating is reported.
	market.queueRatings(
		marketplace.Rating{Stars: 4.9, Reviews: 120},
		marketplace.Rating{Stars: 5.0, Reviews: 121},
	)
	if err := d.HandleEvent(ctx, notice); err != nil {
		t.Fatalf("notice: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		var reported bool
		for _, name := range bus.names() {
			if name == EventReviewReceived {
				reported = true
			}
		}
		if reported {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("rating change never reported: %v", bus.names())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBotMessagesAreIgnored(t *testing.T) {
	market := &fakeMarket{locale: "en"}
	store := newFakeStore()
	bus := &recordingBus{}
	d := newTestDispatcher(market, store, &fakeScheduler{}, bus)
	ctx := context.Background()

	if err := d.HandleEvent(ctx, newOrderEvent("ORDER201", "chat-21", "Spotify Premium")); err != nil {
		t.Fatalf("new order: %v", err)
	}
	sentBefore := len(market.messages())

	if err := d.HandleEvent(ctx, marketplace.Event{
		Type: marketplace.EventChatMessage,
		Message: marketplace.ChatMessage{
			ChatID: "chat-21", AuthorID: 42, Author: "buyer",
			Text: "buyer@example.com", ByBot: true,
		},
	}); err != nil {
		t.Fatalf("bot message: %v", err)
	}

	if data := store.get("ORDER201").FlowState.Data; len(data) != 0 {
		t.Fatalf("bot message advanced the flow: %+v", data)
	}
	if got := len(market.messages()); got != sentBefore {
		t.Fatalf("bot message triggered a reply")
	}
}

func TestBindingOverridesReachBuyerPrompts(t *testing.T) {
	binding := flows.Binding{
		ID: 7, FlowID: "spotify", Keyword: "spotify", Enabled: true,
		TextOverride: map[string]string{
			"email":       "CUSTOM EMAIL PROMPT",
			"email_retry": "CUSTOM RETRY",
		},
	}
	market := &fakeMarket{locale: "en"}
	store := newFakeStore()
	bus := &recordingBus{}
	d := New(
		market, store,
		fakeBindings{bindings: []flows.Binding{binding}},
		flows.DefaultRegistry(),
		&fakeScheduler{}, fakeSettings{cfg: settings.Defaults()}, bus,
		"https://market.example", logger.New("development"),
	)
	ctx := context.Background()

	if err := d.HandleEvent(ctx, newOrderEvent("ORDER202", "chat-22", "Spotify Premium")); err != nil {
		t.Fatalf("new order: %v", err)
	}
	order := store.get("ORDER202")
	if order.BindingID == nil || *order.BindingID != 7 {
		t.Fatalf("order not matched through the binding: %+v", order)
	}
	sent := market.messages()
	if len(sent) != 1 || sent[0].Text != "CUSTOM EMAIL PROMPT" {
		t.Fatalf("binding override ignored, buyer got: %+v", sent)
	}

	// The override also covers mid-flow replies.
	if err := d.HandleEvent(ctx, marketplace.Event{
		Type: marketplace.EventChatMessage,
		Message: marketplace.ChatMessage{
			ChatID: "chat-22", AuthorID: 42, Author: "buyer", Text: "not-an-email",
		},
	}); err != nil {
		t.Fatalf("buyer message: %v", err)
	}
	sent = market.messages()
	if sent[len(sent)-1].Text != "CUSTOM RETRY" {
		t.Fatalf("retry override ignored, buyer got: %q", sent[len(sent)-1].Text)
	}
}

func TestReconcileBackfillsWithoutMessaging(t *testing.T) {
	store := newFakeStore()
	lister := fakeSales{
		paid: []marketplace.OrderSummary{
			{ID: "ORDER101", BuyerID: 1, ItemName: "Spotify Premium", ChatID: "chat-1"},
			{ID: "ORDER104", BuyerID: 4, ItemName: "Something handmade", ChatID: "chat-4"},
		},
		closed:   []marketplace.OrderSummary{{ID: "ORDER102", BuyerID: 2, ItemName: "Nitro"}},
		refunded: []marketplace.OrderSummary{{ID: "ORDER103", BuyerID: 3, ItemName: "Stars"}},
	}
	r := NewReconciler(lister, store, fakeBindings{}, flows.DefaultRegistry(), logger.New("development"))

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Scanned != 4 || res.Inserted != 4 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// Paid order with a flow match is ready to collect data, but no prompt
	// was sent.
	matched := store.get("ORDER101")
	if matched.Status != orders.StatusWaitingData {
		t.Fatalf("matched paid order status: %q", matched.Status)
	}
	if matched.FlowID != "spotify" {
		t.Fatalf("matched paid order flow: %q", matched.FlowID)
	}
	if matched.FlowState.Step == "" {
		t.Fatal("matched paid order has no flow state")
	}

	if store.get("ORDER104").Status != orders.StatusDataCollected {
		t.Fatalf("unmatched paid order status: %q", store.get("ORDER104").Status)
	}
	if store.get("ORDER102").Status != orders.StatusConfirmed {
		t.Fatalf("closed order status: %q", store.get("ORDER102").Status)
	}
	if store.get("ORDER103").Status != orders.StatusRefunded {
		t.Fatalf("refunded order status: %q", store.get("ORDER103").Status)
	}

	// Second pass is a no-op.
	res, err = r.Run(context.Background())
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if res.Inserted != 0 {
		t.Fatalf("second pass inserted %d orders", res.Inserted)
	}
}

type fakeSales struct {
	paid, closed, refunded []marketplace.OrderSummary
}

func (f fakeSales) ListSales(_ context.Context, state marketplace.OrderState) ([]marketplace.OrderSummary, error) {
	switch state {
	case marketplace.OrderStatePaid:
		return f.paid, nil
	case marketplace.OrderStateClosed:
		return f.closed, nil
	default:
		return f.refunded, nil
	}
}

func (f fakeSales) ChatLocale(context.Context, string) (string, error) { return "ru", nil }

func TestBuyerLangFallsBackToDescription(t *testing.T) {
	market := &fakeMarket{locale: ""}
	store := newFakeStore()
	d := newTestDispatcher(market, store, &fakeScheduler{}, &recordingBus{})
	ctx := context.Background()

	if err := d.HandleEvent(ctx, newOrderEvent("ORDER301", "chat-31", "Spotify Premium gift")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := store.get("ORDER301").BuyerLang; got != "en" {
		t.Fatalf("latin description resolved to %q", got)
	}

	if err := d.HandleEvent(ctx, newOrderEvent("ORDER302", "chat-32", "Spotify Premium подписка")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := store.get("ORDER302").BuyerLang; got != "ru" {
		t.Fatalf("cyrillic description resolved to %q", got)
	}
}

func TestDetectLang(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"привет, вот мой email", "ru"},
		{"hello there", "en"},
		{"ok", "ru"},
		{"+", "ru"},
		{"mixed привет text здесь", "ru"},
	}
	for _, tc := range cases {
		if got := detectLang(tc.in); got != tc.want {
			t.Errorf("detectLang(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
