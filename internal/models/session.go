// Package models defines the session record for Mind Scan.
package models

import "time"

// Session is one user's end-to-end interaction state, from landing to chat
// simulation. It is an explicit value object passed to each step handler and
// persisted through the session store; there is no ambient global state.
type Session struct {
	ID   string `json:"id"`
	Step Step   `json:"step"`

	Target TargetProfile `json:"target"`

	// TraitAnalysis is the raw model output of the trait-analysis prompt.
	// Empty until computed; computed at most once per session unless reset.
	TraitAnalysis string         `json:"trait_analysis,omitempty"`
	Profile       PersonaProfile `json:"profile"`

	SituationText  string `json:"situation_text,omitempty"`
	SituationImage string `json:"situation_image,omitempty"` // data URI, optional

	GeneralAnalysis  string            `json:"general_analysis,omitempty"`
	Scenarios        map[string]string `json:"scenarios,omitempty"`
	SelectedScenario string            `json:"selected_scenario,omitempty"`

	ChatHistory []ChatMessage `json:"chat_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a fresh session at the landing step.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Step:      StepLanding,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset returns the session to its landing defaults, keeping only the ID and
// creation time. Used by the explicit restart action.
func (s *Session) Reset() {
	created := s.CreatedAt
	*s = *NewSession(s.ID)
	s.CreatedAt = created
}

// AppendMessage adds a turn to the chat history and bumps UpdatedAt.
func (s *Session) AppendMessage(role, content string) {
	s.ChatHistory = append(s.ChatHistory, ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
}
