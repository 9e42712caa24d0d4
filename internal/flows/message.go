// Package flows implements conversational data-collection scripts. A flow is
// a sequence of prompt/validate steps driven entirely by stored state; the
// engine itself holds nothing in memory between messages, so any replica can
// process the next buyer reply.
package flows

// MessagePair is a buyer-facing text in both supported languages.
type MessagePair struct {
	RU string
	EN string
}

// Resolve picks the text for the buyer's language. Ukrainian falls back to
// Russian, anything unknown to Russian as well; an empty variant falls back
// to the other one so a partially translated override still renders.
func (m MessagePair) Resolve(lang string) string {
	var text string
	switch lang {
	case "en":
		text = m.EN
		if text == "" {
			text = m.RU
		}
	default:
		text = m.RU
		if text == "" {
			text = m.EN
		}
	}
	return text
}
