// Package phone canonicalizes caller-supplied phone numbers so they can be
// matched against previously stored, possibly differently formatted values.
package phone

import "strings"

// Normalize returns the canonical storage form of a raw phone number.
// 10-digit numbers are assumed US/Canada and get a +1 prefix; 11-digit
// numbers starting with 1 get a + prefix. Anything else is passed through
// best-effort with a leading + — malformed input is never rejected.
func Normalize(raw string) string {
	digits := digitsOnly(raw)
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	case strings.HasPrefix(raw, "+"):
		return raw
	default:
		return "+" + raw
	}
}

// Variants returns the deduplicated set of formats a stored number might be
// saved under, always including the original input. Used for lookup, never
// for storage.
func Variants(raw string) []string {
	digits := digitsOnly(raw)

	set := []string{raw}
	add := func(v string) {
		for _, existing := range set {
			if existing == v {
				return
			}
		}
		set = append(set, v)
	}

	switch {
	case len(digits) == 10:
		add("+1" + digits)
		add("1" + digits)
		add(digits)
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		add("+" + digits)
		add(digits)
		add(digits[1:])
		add("+1" + digits[1:])
	default:
		if digits != "" {
			add(digits)
		}
	}
	return set
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
