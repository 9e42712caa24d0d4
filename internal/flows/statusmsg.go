package flows

// Status message keys sent to buyers on lifecycle transitions.
const (
	MsgOrderStarted   = "order_started"
	MsgOrderCompleted = "order_completed"
	MsgOrderCancelled = "order_cancelled"
	MsgReviewReminder = "review_reminder"
)

// StatusMessages are the default buyer notifications. Per-binding text
// overrides and the operator's review templates take precedence when set.
var StatusMessages = map[string]MessagePair{
	MsgOrderStarted: {
		RU: "Ваш заказ взят в работу! Мы сообщим, как только всё будет готово.",
		EN: "Your order is now in progress! We'll let you know as soon as it's done.",
	},
	MsgOrderCompleted: {
		RU: "Заказ выполнен! Пожалуйста, проверьте результат и подтвердите заказ на площадке.",
		EN: "Your order is complete! Please check the result and confirm the order on the marketplace.",
	},
	MsgOrderCancelled: {
		RU: "Заказ отменён, средства возвращены. Если возникли вопросы, напишите нам.",
		EN: "The order has been cancelled and refunded. If you have any questions, just message us.",
	},
	MsgReviewReminder: {
		RU: "Спасибо за покупку! Будем благодарны за отзыв — это занимает меньше минуты.",
		EN: "Thanks for your purchase! We'd really appreciate a review, it takes less than a minute.",
	},
}

// StatusMessage resolves a status message, applying a per-binding override
// when one exists for the key.
func StatusMessage(key, lang string, overrides map[string]string) string {
	if text, ok := overrideText(overrides, key, lang); ok {
		return text
	}
	return StatusMessages[key].Resolve(lang)
}

// overrideText looks up a per-binding replacement for a message key. A
// language-suffixed key ("email_ru") beats the bare key ("email").
func overrideText(overrides map[string]string, key, lang string) (string, bool) {
	if text, ok := overrides[key+"_"+lang]; ok && text != "" {
		return text, true
	}
	if text, ok := overrides[key]; ok && text != "" {
		return text, true
	}
	return "", false
}
