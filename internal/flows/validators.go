package flows

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9_.+-]{1,128}@[a-zA-Z0-9-]{1,128}\.[a-zA-Z]{1,128}$`)
	usernameRe = regexp.MustCompile(`^@?[a-zA-Z0-9_]{3,32}$`)
	digitsRe   = regexp.MustCompile(`^\+?\d{7,15}$`)
)

// ValidEmail accepts a syntactically plausible email address.
func ValidEmail(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if !emailRe.MatchString(v) {
		return "", false
	}
	return v, true
}

// ValidUsername accepts a handle of 3 to 32 word characters, with or without
// a leading @, and stores it in @name form.
func ValidUsername(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if !usernameRe.MatchString(v) {
		return "", false
	}
	return "@" + strings.TrimPrefix(v, "@"), true
}

// ValidPhone accepts an international phone number. Numbers that parse under
// libphonenumber are stored in E.164; anything else falls back to a plain
// digit-count check since buyers routinely omit country formatting.
func ValidPhone(raw string) (string, bool) {
	v := strings.TrimSpace(strings.ReplaceAll(raw, " ", ""))
	if num, err := phonenumbers.Parse(v, ""); err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164), true
	}
	if digitsRe.MatchString(v) {
		return v, true
	}
	return "", false
}

// NonEmpty accepts any non-blank answer.
func NonEmpty(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	return v, v != ""
}

// Optional wraps a validator so the buyer can skip the field by answering
// "нет" or "no". Skipped fields are stored as "-".
func Optional(inner Validator) Validator {
	return func(raw string) (string, bool) {
		v := strings.ToLower(strings.TrimSpace(raw))
		if v == "нет" || v == "no" {
			return "-", true
		}
		return inner(raw)
	}
}
