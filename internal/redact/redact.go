// Package redact masks contact and payment details in free text, such as the
// reasons customers give for cancellations and refunds, before the text is
// written to the audit trail.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Kind is a category of sensitive data
type Kind string

const (
	KindEmail Kind = "email"
	KindPhone Kind = "phone"
	KindCard  Kind = "card"
	KindIBAN  Kind = "iban"
)

// Match is one sensitive span found in a text
type Match struct {
	Kind  Kind
	Start int
	End   int
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// digit runs with optional separators; phones and cards are told apart by digit count
	digitRunPattern = regexp.MustCompile(`\+?\d[\d\s().\-]{8,}\d`)

	ibanPattern = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}(?:\s?[A-Z0-9]{1,4})?\b`)
)

// Find returns the sensitive spans in s ordered by position. Overlapping
// spans are merged, keeping the kind of the earliest one.
func Find(s string) []Match {
	var matches []Match

	for _, loc := range emailPattern.FindAllStringIndex(s, -1) {
		matches = append(matches, Match{Kind: KindEmail, Start: loc[0], End: loc[1]})
	}
	for _, loc := range ibanPattern.FindAllStringIndex(s, -1) {
		matches = append(matches, Match{Kind: KindIBAN, Start: loc[0], End: loc[1]})
	}
	for _, loc := range digitRunPattern.FindAllStringIndex(s, -1) {
		digits := onlyDigits(s[loc[0]:loc[1]])
		switch {
		case len(digits) >= 13 && len(digits) <= 19 && luhn(digits):
			matches = append(matches, Match{Kind: KindCard, Start: loc[0], End: loc[1]})
		case len(digits) >= 10 && len(digits) <= 15:
			matches = append(matches, Match{Kind: KindPhone, Start: loc[0], End: loc[1]})
		}
	}

	return merge(matches)
}

// Contains reports whether s holds any sensitive data
func Contains(s string) bool {
	return len(Find(s)) > 0
}

// Text returns s with every sensitive span replaced by a placeholder naming its kind
func Text(s string) string {
	matches := Find(s)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	prev := 0
	for _, m := range matches {
		b.WriteString(s[prev:m.Start])
		b.WriteString(placeholder(m.Kind))
		prev = m.End
	}
	b.WriteString(s[prev:])
	return b.String()
}

func placeholder(k Kind) string {
	return "[" + strings.ToUpper(string(k)) + "_REDACTED]"
}

func merge(matches []Match) []Match {
	if len(matches) < 2 {
		return matches
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End > matches[j].End
	})

	out := matches[:1]
	for _, m := range matches[1:] {
		last := &out[len(out)-1]
		if m.Start < last.End {
			if m.End > last.End {
				last.End = m.End
			}
			continue
		}
		out = append(out, m)
	}
	return out
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhn validates a card number checksum
func luhn(digits string) bool {
	sum := 0
	second := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if second {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		second = !second
	}
	return sum%10 == 0
}
