package flows

import "testing"

func TestValidEmail(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"buyer@example.com", true},
		{"  first.last+tag@sub-domain.io  ", true},
		{"no-at-sign.com", false},
		{"buyer@", false},
		{"@example.com", false},
		{"buyer@example", false},
		{"", false},
	}
	for _, tc := range cases {
		if _, ok := ValidEmail(tc.in); ok != tc.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tc.in, ok, tc.want)
		}
	}
}

func TestValidUsernameNormalizesHandle(t *testing.T) {
	got, ok := ValidUsername("some_user")
	if !ok || got != "@some_user" {
		t.Fatalf("ValidUsername(some_user) = %q, %v", got, ok)
	}
	got, ok = ValidUsername("@some_user")
	if !ok || got != "@some_user" {
		t.Fatalf("ValidUsername(@some_user) = %q, %v", got, ok)
	}
	if _, ok := ValidUsername("ab"); ok {
		t.Fatalf("two-character handle must be rejected")
	}
	if _, ok := ValidUsername("has space"); ok {
		t.Fatalf("handle with space must be rejected")
	}
}

func TestValidPhone(t *testing.T) {
	got, ok := ValidPhone("+1 202 555 0123")
	if !ok {
		t.Fatalf("US number rejected")
	}
	if got[0] != '+' {
		t.Fatalf("expected E.164 output, got %q", got)
	}

	// Bare digit strings without a parseable region still pass the fallback.
	if _, ok := ValidPhone("79991234567"); !ok {
		t.Fatalf("digit fallback rejected")
	}
	if _, ok := ValidPhone("12345"); ok {
		t.Fatalf("too-short number accepted")
	}
	if _, ok := ValidPhone("not a phone"); ok {
		t.Fatalf("text accepted as phone")
	}
}

func TestOptionalSkip(t *testing.T) {
	v := Optional(ValidPhone)
	for _, in := range []string{"нет", "no", " No ", "НЕТ"} {
		got, ok := v(in)
		if !ok || got != "-" {
			t.Fatalf("Optional(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := v("garbage"); ok {
		t.Fatalf("optional must still validate non-skip answers")
	}
}

func TestMessagePairResolve(t *testing.T) {
	m := MessagePair{RU: "привет", EN: "hello"}
	if m.Resolve("ru") != "привет" {
		t.Fatalf("ru resolve failed")
	}
	if m.Resolve("en") != "hello" {
		t.Fatalf("en resolve failed")
	}
	if m.Resolve("uk") != "привет" {
		t.Fatalf("uk must fall back to ru")
	}
	if (MessagePair{RU: "только ру"}).Resolve("en") != "только ру" {
		t.Fatalf("missing en must fall back to ru")
	}
}
