package entitlements

import "strings"

// Tier is a canonicalized subscription level. Only Standard and Professional
// are ranked; any other label is kept as-is and reported as unrecognized.
type Tier struct {
	label      string
	recognized bool
}

var (
	Standard     = Tier{label: "standard", recognized: true}
	Professional = Tier{label: "professional", recognized: true}
)

// Keyword order matters: professional is checked first so that labels such
// as "pro-starter" rank as professional.
var (
	professionalKeywords = []string{"pro", "professional", "premium"}
	standardKeywords     = []string{"standard", "basic", "starter"}
)

// Canonicalize maps a free-text tier label onto the tier lexicon.
func Canonicalize(raw string) Tier {
	t := Unrecognized(raw)
	if t.IsEmpty() {
		return t
	}
	if containsAny(t.label, professionalKeywords) {
		return Professional
	}
	if containsAny(t.label, standardKeywords) {
		return Standard
	}
	return t
}

// Unrecognized builds an unranked tier for the given label. Surrounding
// whitespace is dropped and the label is lower-cased.
func Unrecognized(label string) Tier {
	return Tier{label: strings.ToLower(strings.TrimSpace(label))}
}

// String returns the canonical label.
func (t Tier) String() string {
	return t.label
}

// Recognized reports whether the tier takes part in rank comparison.
func (t Tier) Recognized() bool {
	return t.recognized
}

// IsEmpty reports whether no tier label was given at all.
func (t Tier) IsEmpty() bool {
	return t.label == ""
}

// Rank returns 1 for standard, 2 for professional and 0 otherwise.
func (t Tier) Rank() int {
	switch t {
	case Professional:
		return 2
	case Standard:
		return 1
	default:
		return 0
	}
}

// Satisfies reports whether t meets required. ok is false when either side is
// unrecognized and the caller has to decide by other means.
func (t Tier) Satisfies(required Tier) (satisfied bool, ok bool) {
	if !t.recognized || !required.recognized {
		return false, false
	}
	return t.Rank() >= required.Rank(), true
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
