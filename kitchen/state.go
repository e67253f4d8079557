// Package kitchen owns the session state the assistant accumulates across turns:
// pantry, dietary constraints, party size, transcript, usage and the last critique.
package kitchen

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"aichef"
)

// PantryItem is one ingredient known to the session. Name is the identity key, compared case-insensitively.
type PantryItem struct {
	Name     string `json:"name" yaml:"name"`
	Quantity string `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Expiry   string `json:"expiry,omitempty" yaml:"expiry,omitempty"`
}

// Critique is the critic's latest verdict on a set of recipe proposals.
type Critique struct {
	Score int    `json:"score"`
	Text  string `json:"text"`
}

// Session is the state of one conversation. It has a single owner and is not safe for concurrent use.
type Session struct {
	id          string
	credential  string
	pantry      []PantryItem
	constraints []string
	partySize   string
	transcript  []aichef.Turn
	usage       int
	critique    *Critique
}

// NewSession returns a fresh, empty session.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

// ID identifies the session in logs and traces.
func (s *Session) ID() string { return s.id }

// SetCredential stores the API key used for this session's completion calls.
func (s *Session) SetCredential(key string) { s.credential = strings.TrimSpace(key) }

func (s *Session) Credential() string { return s.credential }

// Reset discards all kitchen state. The session ID and credential are kept.
func (s *Session) Reset() {
	s.pantry = nil
	s.constraints = nil
	s.partySize = ""
	s.transcript = nil
	s.usage = 0
	s.critique = nil
}

// Pantry returns a copy of the pantry in insertion order.
func (s *Session) Pantry() []PantryItem { return slices.Clone(s.pantry) }

// Constraints returns a copy of the constraint list in insertion order.
func (s *Session) Constraints() []string { return slices.Clone(s.constraints) }

// PartySize returns the party size, or "" when unspecified.
func (s *Session) PartySize() string { return s.partySize }

// HasPartySize reports whether a party size was ever extracted.
func (s *Session) HasPartySize() bool { return s.partySize != "" }

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []aichef.Turn { return slices.Clone(s.transcript) }

// Usage returns the usage units consumed since the session started or was reset.
func (s *Session) Usage() int { return s.usage }

// AddUsage adds the units of a completed call. Negative values are ignored so the counter never decreases.
func (s *Session) AddUsage(units int) {
	if units > 0 {
		s.usage += units
	}
}

// Critique returns the last critique, or nil if the critic never ran.
func (s *Session) Critique() *Critique {
	if s.critique == nil {
		return nil
	}
	c := *s.critique
	return &c
}

// SetCritique replaces the critique slot.
func (s *Session) SetCritique(c Critique) { s.critique = &c }

// AppendExchange records a user turn and the assistant reply to it.
func (s *Session) AppendExchange(user, assistant string) {
	s.transcript = append(s.transcript,
		aichef.Turn{Role: aichef.RoleUser, Text: user},
		aichef.Turn{Role: aichef.RoleAssistant, Text: assistant},
	)
}

// Snapshot is the serialisable form of a session, used by callers that keep state on their side.
type Snapshot struct {
	ID          string        `json:"id"`
	Pantry      []PantryItem  `json:"pantry"`
	Constraints []string      `json:"constraints"`
	PartySize   string        `json:"party_size,omitempty"`
	Transcript  []aichef.Turn `json:"transcript"`
	Usage       int           `json:"usage"`
	Critique    *Critique     `json:"critique,omitempty"`
}

// Snapshot copies the session state. The credential is never included.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:          s.id,
		Pantry:      s.Pantry(),
		Constraints: s.Constraints(),
		PartySize:   s.partySize,
		Transcript:  s.Transcript(),
		Usage:       s.usage,
		Critique:    s.Critique(),
	}
}

// FromSnapshot rebuilds a session. Pantry entries are re-merged so a hand-edited snapshot
// cannot break name uniqueness.
func FromSnapshot(snap Snapshot) *Session {
	s := NewSession()
	if snap.ID != "" {
		s.id = snap.ID
	}

	var rec Extraction
	for _, it := range snap.Pantry {
		rec.Items = append(rec.Items, ItemUpdate(it))
	}
	rec.Constraints = snap.Constraints
	rec.People = snap.PartySize
	s.Merge(rec)

	s.transcript = slices.Clone(snap.Transcript)
	s.AddUsage(snap.Usage)
	if snap.Critique != nil {
		s.SetCritique(*snap.Critique)
	}
	return s
}
