package flows

import "strings"

// Binding is an operator-managed rule that routes lots to a flow. Bindings
// are checked before the built-in matching inputs of the flows themselves,
// so an operator can always override what ships in the binary.
type Binding struct {
	ID           int64
	FlowID       string
	LotID        *int64
	Keyword      string
	NamePattern  string
	TextOverride map[string]string // message key -> replacement text
	Enabled      bool
}

// Match is the result of routing a lot to a flow.
type Match struct {
	FlowID    string
	BindingID *int64
}

// Matcher routes a purchased lot to a flow. Matching runs three passes in
// strict priority order: keyword hit in the lot title, explicit lot id, then
// title substring. Within a pass, bindings win over built-in flows and both
// are scanned in stable order, so the same lot always routes the same way.
type Matcher struct {
	registry *Registry
}

// NewMatcher creates a matcher over the given flow registry.
func NewMatcher(registry *Registry) *Matcher {
	return &Matcher{registry: registry}
}

// Match routes a lot to a flow. Returns false when nothing matches; such
// orders skip data collection entirely.
func (m *Matcher) Match(lotID int64, itemName string, bindings []Binding) (Match, bool) {
	title := strings.ToLower(itemName)
	normalized, words := titleWords(title)

	// Pass 1: keywords.
	for _, b := range bindings {
		if b.Enabled && b.Keyword != "" && containsPhrase(normalized, words, strings.ToLower(b.Keyword)) {
			return Match{FlowID: b.FlowID, BindingID: ref(b.ID)}, true
		}
	}
	for _, def := range m.registry.All() {
		for _, kw := range def.Keywords {
			if containsPhrase(normalized, words, strings.ToLower(kw)) {
				return Match{FlowID: def.ID}, true
			}
		}
	}

	// Pass 2: explicit lot ids.
	if lotID != 0 {
		for _, b := range bindings {
			if b.Enabled && b.LotID != nil && *b.LotID == lotID {
				return Match{FlowID: b.FlowID, BindingID: ref(b.ID)}, true
			}
		}
		for _, def := range m.registry.All() {
			for _, id := range def.LotIDs {
				if id == lotID {
					return Match{FlowID: def.ID}, true
				}
			}
		}
	}

	// Pass 3: title substring.
	for _, b := range bindings {
		if b.Enabled && b.NamePattern != "" && strings.Contains(title, strings.ToLower(b.NamePattern)) {
			return Match{FlowID: b.FlowID, BindingID: ref(b.ID)}, true
		}
	}
	for _, def := range m.registry.All() {
		if def.NamePattern != "" && strings.Contains(title, strings.ToLower(def.NamePattern)) {
			return Match{FlowID: def.ID}, true
		}
	}

	return Match{}, false
}

// containsPhrase matches single-word keywords against whole title words and
// multi-word keywords as whole-word sequences, so "premium 12" hits
// "Telegram Premium 12 мес" but "premium 1" does not.
func containsPhrase(normalized string, words map[string]bool, kw string) bool {
	if strings.ContainsRune(kw, ' ') {
		return strings.Contains(" "+normalized+" ", " "+kw+" ")
	}
	return words[kw]
}

// titleWords splits the lowercased title on non-word runes and returns the
// words rejoined with single spaces plus a lookup set.
func titleWords(title string) (string, map[string]bool) {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return !isWordRune(r)
	})
	set := make(map[string]bool, len(fields))
	for _, w := range fields {
		set[w] = true
	}
	return strings.Join(fields, " "), set
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я', r == 'ё':
		return true
	}
	return false
}

func ref(v int64) *int64 { return &v }

// OverridesFor returns the text overrides of the binding a match came from,
// or nil for built-in matches.
func OverridesFor(bindings []Binding, bindingID *int64) map[string]string {
	if bindingID == nil {
		return nil
	}
	for _, b := range bindings {
		if b.ID == *bindingID {
			return b.TextOverride
		}
	}
	return nil
}
