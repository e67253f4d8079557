package kitchen

import "strings"

// ItemUpdate is a pantry mention from one extraction. Empty fields mean "not supplied".
type ItemUpdate struct {
	Name     string `json:"name" yaml:"item"`
	Quantity string `json:"quantity,omitempty" yaml:"qty,omitempty"`
	Expiry   string `json:"expiry,omitempty" yaml:"expiry,omitempty"`
}

// Extraction is the validated record applied to a session by Merge.
type Extraction struct {
	Items       []ItemUpdate `json:"items,omitempty" yaml:"ingredients,omitempty"`
	Constraints []string     `json:"constraints,omitempty" yaml:"preferences,omitempty"`
	People      string       `json:"people,omitempty" yaml:"people,omitempty"`
}

// IsEmpty reports whether the record carries no information.
func (e Extraction) IsEmpty() bool {
	return len(e.Items) == 0 && len(e.Constraints) == 0 && Known(e.People) == ""
}

// unknownValues are placeholders the model uses instead of leaving a field out.
var unknownValues = map[string]struct{}{
	"":        {},
	"null":    {},
	"none":    {},
	"nil":     {},
	"unknown": {},
	"n/a":     {},
}

// Known trims v and returns it, or "" when it is a placeholder for an unknown value.
func Known(v string) string {
	v = strings.TrimSpace(v)
	if _, ok := unknownValues[strings.ToLower(v)]; ok {
		return ""
	}
	return v
}

// NormalizeName returns the identity key of a pantry item name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Merge applies an extraction to the session in place. Applying the same record twice leaves the
// session as applying it once.
func (s *Session) Merge(rec Extraction) {
	for _, it := range rec.Items {
		s.mergeItem(it)
	}

	for _, c := range rec.Constraints {
		s.addConstraint(c)
	}

	if people := Known(rec.People); people != "" {
		s.partySize = people
	}
}

func (s *Session) mergeItem(it ItemUpdate) {
	key := NormalizeName(it.Name)
	if key == "" {
		return
	}
	qty, exp := Known(it.Quantity), Known(it.Expiry)

	for i := range s.pantry {
		if NormalizeName(s.pantry[i].Name) != key {
			continue
		}
		if qty != "" {
			s.pantry[i].Quantity = qty
		}
		if exp != "" {
			s.pantry[i].Expiry = exp
		}
		return
	}

	s.pantry = append(s.pantry, PantryItem{
		Name:     strings.TrimSpace(it.Name),
		Quantity: qty,
		Expiry:   exp,
	})
}

func (s *Session) addConstraint(c string) {
	c = strings.TrimSpace(c)
	if c == "" {
		return
	}
	key := strings.ToLower(c)
	for _, existing := range s.constraints {
		if strings.ToLower(existing) == key {
			return
		}
	}
	s.constraints = append(s.constraints, c)
}
