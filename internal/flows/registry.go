package flows

import "sort"

// Registry holds the compiled flow definitions keyed by flow id.
type Registry struct {
	flows map[string]FlowDefinition
	order []string
}

// NewRegistry builds a registry from the given definitions. Matching order
// follows the order the definitions are passed in.
func NewRegistry(defs ...FlowDefinition) *Registry {
	r := &Registry{flows: make(map[string]FlowDefinition, len(defs))}
	for _, d := range defs {
		if _, dup := r.flows[d.ID]; dup {
			continue
		}
		r.flows[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

// Get returns the flow with the given id.
func (r *Registry) Get(id string) (FlowDefinition, bool) {
	d, ok := r.flows[id]
	return d, ok
}

// All returns every flow in matching order.
func (r *Registry) All() []FlowDefinition {
	out := make([]FlowDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.flows[id])
	}
	return out
}

// IDs returns the registered flow ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry returns the built-in product flows.
func DefaultRegistry() *Registry {
	return NewRegistry(
		spotifyFlow(),
		discordNitroFlow(),
		chatGPTFlow(),
		telegramPremiumMonthFlow(),
		telegramPremiumLongFlow(),
		telegramStarsFlow(),
	)
}

func spotifyFlow() FlowDefinition {
	return FlowDefinition{
		ID:          "spotify",
		Title:       "Spotify Premium",
		Keywords:    []string{"spotify", "спотифай"},
		NamePattern: "spotify",
		First:       "email",
		Steps: map[string]Step{
			"email": {
				ID: "email", Kind: StepKindAsk, Field: "email",
				Prompt: MessagePair{
					RU: "Для оформления Spotify Premium отправьте email от вашего аккаунта.",
					EN: "To set up Spotify Premium, please send the email of your account.",
				},
				Retry: MessagePair{
					RU: "Это не похоже на email. Отправьте адрес в формате name@example.com.",
					EN: "That doesn't look like an email. Please send it as name@example.com.",
				},
				Validate: ValidEmail,
				Next:     "password",
			},
			"password": {
				ID: "password", Kind: StepKindAsk, Field: "password",
				Prompt: MessagePair{
					RU: "Теперь отправьте пароль от аккаунта.",
					EN: "Now send the password of the account.",
				},
				Next: "confirm",
			},
			"confirm": {
				ID: "confirm", Kind: StepKindConfirm,
				Prompt: MessagePair{
					RU: "Проверьте данные:\nEmail: {email}\nПароль: {password}\n\nЕсли всё верно, отправьте «+». Чтобы ввести заново, отправьте «-».",
					EN: "Please check the details:\nEmail: {email}\nPassword: {password}\n\nSend \"+\" if everything is correct, or \"-\" to start over.",
				},
				Next: "done",
			},
			"done": {
				ID: "done", Kind: StepKindDone,
				Prompt: MessagePair{
					RU: "Спасибо! Данные получены, заказ взят в работу. Обычно активация занимает до 30 минут.",
					EN: "Thank you! The details are in and your order is being processed. Activation usually takes up to 30 minutes.",
				},
			},
		},
	}
}

func discordNitroFlow() FlowDefinition {
	return FlowDefinition{
		ID:          "discord_nitro",
		Title:       "Discord Nitro",
		Keywords:    []string{"nitro", "нитро"},
		NamePattern: "discord",
		First:       "email",
		Steps: map[string]Step{
			"email": {
				ID: "email", Kind: StepKindAsk, Field: "email",
				Prompt: MessagePair{
					RU: "Для активации Discord Nitro отправьте email от вашего аккаунта Discord.",
					EN: "To activate Discord Nitro, please send the email of your Discord account.",
				},
				Retry: MessagePair{
					RU: "Некорректный email, попробуйте ещё раз.",
					EN: "Invalid email, please try again.",
				},
				Validate: ValidEmail,
				Next:     "password",
			},
			"password": {
				ID: "password", Kind: StepKindAsk, Field: "password",
				Prompt: MessagePair{
					RU: "Теперь отправьте пароль от аккаунта.",
					EN: "Now send the password of the account.",
				},
				Next: "confirm",
			},
			"confirm": {
				ID: "confirm", Kind: StepKindConfirm,
				Prompt: MessagePair{
					RU: "Проверьте данные:\nEmail: {email}\nПароль: {password}\n\nВсё верно? «+» — да, «-» — ввести заново.",
					EN: "Please check:\nEmail: {email}\nPassword: {password}\n\nAll correct? \"+\" yes, \"-\" start over.",
				},
				Next: "done",
			},
			"done": {
				ID: "done", Kind: StepKindDone,
				Prompt: MessagePair{
					RU: "Данные получены! Nitro будет активирован в ближайшее время.",
					EN: "Details received! Nitro will be activated shortly.",
				},
			},
		},
	}
}

func chatGPTFlow() FlowDefinition {
	return FlowDefinition{
		ID:          "chatgpt",
		Title:       "ChatGPT Plus",
		Keywords:    []string{"chatgpt", "openai"},
		NamePattern: "chatgpt",
		First:       "email",
		Steps: map[string]Step{
			"email": {
				ID: "email", Kind: StepKindAsk, Field: "email",
				Prompt: MessagePair{
					RU: "Для оформления подписки ChatGPT отправьте email вашего аккаунта OpenAI.",
					EN: "To set up your ChatGPT subscription, please send the email of your OpenAI account.",
				},
				Retry: MessagePair{
					RU: "Некорректный email, отправьте адрес в формате name@example.com.",
					EN: "Invalid email, please send it as name@example.com.",
				},
				Validate: ValidEmail,
				Next:     "confirm",
			},
			"confirm": {
				ID: "confirm", Kind: StepKindConfirm,
				Prompt: MessagePair{
					RU: "Email: {email}\n\nВсё верно? «+» — да, «-» — ввести заново.",
					EN: "Email: {email}\n\nIs that correct? \"+\" yes, \"-\" start over.",
				},
				Next: "done",
			},
			"done": {
				ID: "done", Kind: StepKindDone,
				Prompt: MessagePair{
					RU: "Спасибо! На указанный email придёт приглашение, заказ взят в работу.",
					EN: "Thank you! An invite will arrive at that email; your order is being processed.",
				},
			},
		},
	}
}

// Gifting one month of Premium requires signing into the buyer's account, so
// this flow collects credentials; the longer plans only need a username.
func telegramPremiumMonthFlow() FlowDefinition {
	return FlowDefinition{
		ID:          "telegram_premium_1m",
		Title:       "Telegram Premium (1 month)",
		Keywords:    []string{"premium 1"},
		NamePattern: "telegram premium",
		First:       "phone",
		Steps: map[string]Step{
			"phone": {
				ID: "phone", Kind: StepKindAsk, Field: "phone",
				Prompt: MessagePair{
					RU: "Для активации Telegram Premium отправьте номер телефона, привязанный к вашему аккаунту (в формате +79991234567).",
					EN: "To activate Telegram Premium, please send the phone number linked to your account (format: +12025550123).",
				},
				Retry: MessagePair{
					RU: "Некорректный номер. Отправьте его в международном формате, например +79991234567.",
					EN: "Invalid number. Send it in international format, e.g. +12025550123.",
				},
				Validate: ValidPhone,
				Next:     "password",
			},
			"password": {
				ID: "password", Kind: StepKindAsk, Field: "password",
				Prompt: MessagePair{
					RU: "Теперь отправьте пароль для входа в аккаунт.",
					EN: "Now send the login password of the account.",
				},
				Next: "cloud_password",
			},
			"cloud_password": {
				ID: "cloud_password", Kind: StepKindAsk, Field: "cloud_password",
				Prompt: MessagePair{
					RU: "Установлен ли у вас облачный пароль (двухэтапная проверка)? Если да, отправьте его, если нет — напишите «нет».",
					EN: "Do you have a cloud password (two-step verification)? If yes, send it; if not, write \"no\".",
				},
				Validate: Optional(NonEmpty),
				Next:     "confirm",
			},
			"confirm": {
				ID: "confirm", Kind: StepKindConfirm,
				Prompt: MessagePair{
					RU: "Проверьте данные:\nТелефон: {phone}\nПароль: {password}\nОблачный пароль: {cloud_password}\n\nВсё верно? «+» — да, «-» — ввести заново.",
					EN: "Please check:\nPhone: {phone}\nPassword: {password}\nCloud password: {cloud_password}\n\nAll correct? \"+\" yes, \"-\" start over.",
				},
				Next: "done",
			},
			"done": {
				ID: "done", Kind: StepKindDone,
				Prompt: MessagePair{
					RU: "Данные получены! Premium будет активирован в течение часа.",
					EN: "Details received! Premium will be activated within an hour.",
				},
			},
		},
	}
}

func telegramPremiumLongFlow() FlowDefinition {
	return FlowDefinition{
		ID:       "telegram_premium_long",
		Title:    "Telegram Premium (3/6/12 months)",
		Keywords: []string{"premium 3", "premium 6", "premium 12"},
		First:    "username",
		Steps: map[string]Step{
			"username": {
				ID: "username", Kind: StepKindAsk, Field: "username",
				Prompt: MessagePair{
					RU: "Для активации Telegram Premium отправьте ваш юзернейм (например, @username).",
					EN: "To activate Telegram Premium, please send your username (e.g. @username).",
				},
				Retry: MessagePair{
					RU: "Некорректный юзернейм. Он состоит из 3–32 латинских букв, цифр и подчёркиваний.",
					EN: "Invalid username. It must be 3 to 32 latin letters, digits or underscores.",
				},
				Validate: ValidUsername,
				Next:     "confirm",
			},
			"confirm": {
				ID: "confirm", Kind: StepKindConfirm,
				Prompt: MessagePair{
					RU: "Юзернейм: {username}\n\nВсё верно? «+» — да, «-» — ввести заново.",
					EN: "Username: {username}\n\nIs that correct? \"+\" yes, \"-\" start over.",
				},
				Next: "done",
			},
			"done": {
				ID: "done", Kind: StepKindDone,
				Prompt: MessagePair{
					RU: "Данные получены! Долгосрочный Premium активируется в течение 24 часов после подтверждения оплаты.",
					EN: "Details received! Long-term Premium is activated within 24 hours of payment confirmation.",
				},
			},
		},
	}
}

func telegramStarsFlow() FlowDefinition {
	return FlowDefinition{
		ID:          "telegram_stars",
		Title:       "Telegram Stars",
		Keywords:    []string{"stars", "звезды", "звёзды"},
		NamePattern: "stars",
		First:       "username",
		Steps: map[string]Step{
			"username": {
				ID: "username", Kind: StepKindAsk, Field: "username",
				Prompt: MessagePair{
					RU: "Для начисления Stars отправьте ваш юзернейм Telegram (например, @username).",
					EN: "To top up Stars, please send your Telegram username (e.g. @username).",
				},
				Retry: MessagePair{
					RU: "Некорректный юзернейм. Он состоит из 3–32 латинских букв, цифр и подчёркиваний.",
					EN: "Invalid username. It must be 3 to 32 latin letters, digits or underscores.",
				},
				Validate: ValidUsername,
				Next:     "confirm",
			},
			"confirm": {
				ID: "confirm", Kind: StepKindConfirm,
				Prompt: MessagePair{
					RU: "Юзернейм: {username}\n\nВсё верно? «+» — да, «-» — ввести заново.",
					EN: "Username: {username}\n\nIs that correct? \"+\" yes, \"-\" start over.",
				},
				Next: "done",
			},
			"done": {
				ID: "done", Kind: StepKindDone,
				Prompt: MessagePair{
					RU: "Данные получены! Stars будут начислены в ближайшее время.",
					EN: "Details received! Stars will be credited shortly.",
				},
			},
		},
	}
}
