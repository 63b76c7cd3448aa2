// Package models defines the core data structures for Mind Scan.
//
// It includes the session record, the target-person profile, parsed analysis
// results, and the API response envelope shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Step identifies the current position of a session in the analysis journey.
type Step string

// Step constants for the conversation flow.
const (
	StepLanding            Step = "LANDING"
	StepProfileIntake      Step = "PROFILE_INTAKE"
	StepTraitAnalysis      Step = "TRAIT_ANALYSIS"
	StepSituationIntake    Step = "SITUATION_INTAKE"
	StepScenarioPrediction Step = "SCENARIO_PREDICTION"
	StepChatSimulation     Step = "CHAT_SIMULATION"
)

// IsValidStep checks if the given step is one of the defined flow steps.
func IsValidStep(s Step) bool {
	switch s {
	case StepLanding, StepProfileIntake, StepTraitAnalysis, StepSituationIntake, StepScenarioPrediction, StepChatSimulation:
		return true
	default:
		return false
	}
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Scenario labels produced by the two-scenario prediction contract.
const (
	ScenarioLabelA = "A"
	ScenarioLabelB = "B"
)

// Error variables for validation and flow control.
var (
	ErrEmptyName           = errors.New("target name cannot be empty")
	ErrEmptySituation      = errors.New("situation description cannot be empty")
	ErrAnalysisNotReady    = errors.New("trait analysis has not been computed yet")
	ErrScenarioNotSelected = errors.New("no scenario has been selected")
	ErrUnknownScenario     = errors.New("unknown scenario label")
	ErrEmptyMessage        = errors.New("chat message cannot be empty")
	ErrInvalidTransition   = errors.New("invalid step transition")
	ErrSessionNotFound     = errors.New("session not found")
)

// TargetProfile describes the person being analyzed. It is set once at the
// profile intake step and treated as immutable afterwards.
type TargetProfile struct {
	RelationType   string `json:"relation_type"`   // e.g. 연인/썸, 친구, 직장동료/상사, 가족, 기타
	Name           string `json:"name"`            // display name or nickname, required
	Gender         string `json:"gender"`          // 남성 or 여성
	BirthDate      string `json:"birth_date"`      // YYYY-MM-DD
	CalendarSystem string `json:"calendar_system"` // 양력 or 음력
}

// Validate checks that the profile carries everything the analysis prompts need.
func (p *TargetProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// PersonaProfile holds the structured fields extracted from the raw trait
// analysis text. Extraction is best-effort; missing fields stay empty.
type PersonaProfile struct {
	Temperament   string `json:"temperament"`
	Communication string `json:"communication"`
	Strategy      string `json:"strategy"`
}

// ScenarioResult is the structured form of a scenario-prediction response:
// a general analysis paragraph plus labeled candidate scenarios.
type ScenarioResult struct {
	GeneralAnalysis string            `json:"general_analysis"`
	Scenarios       map[string]string `json:"scenarios"`
}

// PersonaReply is the strict JSON contract for a single persona chat turn.
type PersonaReply struct {
	Reply    string `json:"reply"`
	Emotion  string `json:"emotion"`
	Thoughts string `json:"thoughts"`
	Tips     string `json:"tips"`
	Warning  string `json:"warning"`
}

// ChatMessage is one turn in the simulation history. Assistant entries carry
// the serialized PersonaReply JSON as their content.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// API response status constants.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
