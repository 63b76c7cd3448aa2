// Package flow implements the Mind Scan conversation state machine.
//
// A session moves through a strict linear-with-backtrack journey: landing,
// profile intake, trait analysis, situation intake, scenario prediction and
// finally the open-ended chat simulation. Forward transitions carry
// preconditions; backward transitions are unconditional. Step handlers
// receive the session explicitly and persist it through the store after
// every mutation.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mindscan-ai/mindscan/internal/models"
	"github.com/mindscan-ai/mindscan/internal/parse"
	"github.com/mindscan-ai/mindscan/internal/prompt"
	"github.com/mindscan-ai/mindscan/internal/store"
)

// Generator defines the minimal model-gateway interface the flow needs.
type Generator interface {
	// Generate produces the full response text for a prompt, with an
	// optional data-URI image attachment.
	Generate(ctx context.Context, prompt, image string) (string, error)
}

// ChunkStream is a lazy, finite, non-restartable sequence of text chunks.
type ChunkStream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// StreamingGenerator extends Generator for gateways that support
// incremental output.
type StreamingGenerator interface {
	Generator
	GenerateStream(ctx context.Context, prompt, image string) (ChunkStream, error)
}

// transitions lists the allowed step machine edges.
var transitions = map[models.Step][]models.Step{
	models.StepLanding:            {models.StepProfileIntake},
	models.StepProfileIntake:      {models.StepTraitAnalysis},
	models.StepTraitAnalysis:      {models.StepSituationIntake, models.StepLanding},
	models.StepSituationIntake:    {models.StepScenarioPrediction},
	models.StepScenarioPrediction: {models.StepChatSimulation, models.StepSituationIntake},
	models.StepChatSimulation:     {models.StepSituationIntake, models.StepLanding},
}

// canTransition reports whether the step machine allows the edge.
func canTransition(from, to models.Step) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Flow drives a session through the analysis journey.
type Flow struct {
	store store.Store
	gen   Generator
}

// NewFlow creates a flow with its dependencies.
func NewFlow(st store.Store, gen Generator) *Flow {
	slog.Debug("flow.NewFlow: creating flow with dependencies")
	return &Flow{store: st, gen: gen}
}

// CreateSession creates and persists a fresh session at the landing step.
func (f *Flow) CreateSession(ctx context.Context) (*models.Session, error) {
	sess := models.NewSession(uuid.NewString())
	if err := f.save(sess); err != nil {
		return nil, err
	}
	slog.Info("Flow.CreateSession: session created", "sessionID", sess.ID)
	return sess, nil
}

// GetSession loads a session by ID. A missing session is ErrSessionNotFound.
func (f *Flow) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess, err := f.store.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if sess == nil {
		return nil, models.ErrSessionNotFound
	}
	return sess, nil
}

// Start moves a landing session into profile intake. No precondition.
func (f *Flow) Start(ctx context.Context, sess *models.Session) error {
	if err := f.transition(sess, models.StepLanding, models.StepProfileIntake); err != nil {
		return err
	}
	return f.save(sess)
}

// SubmitProfile records the target profile and advances to trait analysis.
// The name must be non-blank; a validation failure leaves the step
// unchanged so the intake form re-prompts.
func (f *Flow) SubmitProfile(ctx context.Context, sess *models.Session, target models.TargetProfile) error {
	if err := target.Validate(); err != nil {
		slog.Warn("Flow.SubmitProfile: validation failed", "sessionID", sess.ID, "error", err)
		return err
	}
	if err := f.transition(sess, models.StepProfileIntake, models.StepTraitAnalysis); err != nil {
		return err
	}
	sess.Target = target
	slog.Info("Flow.SubmitProfile: profile recorded", "sessionID", sess.ID, "name", target.Name)
	return f.save(sess)
}

// EnsureTraitAnalysis lazily computes the trait analysis on first entry to
// the trait-analysis step. The result is cached on the session; a
// generation failure leaves the cache empty so re-entering the step retries.
func (f *Flow) EnsureTraitAnalysis(ctx context.Context, sess *models.Session) (string, error) {
	if sess.Step != models.StepTraitAnalysis {
		return "", fmt.Errorf("%w: trait analysis requires step %s, current is %s",
			models.ErrInvalidTransition, models.StepTraitAnalysis, sess.Step)
	}
	if sess.TraitAnalysis != "" {
		return sess.TraitAnalysis, nil
	}

	text, err := f.gen.Generate(ctx, prompt.TraitAnalysis(sess.Target), "")
	if err != nil {
		slog.Error("Flow.EnsureTraitAnalysis: generation failed", "sessionID", sess.ID, "error", err)
		return "", fmt.Errorf("trait analysis failed: %w", err)
	}
	sess.TraitAnalysis = text
	sess.Profile = parse.Profile(text)
	sess.UpdatedAt = time.Now()
	slog.Info("Flow.EnsureTraitAnalysis: analysis computed", "sessionID", sess.ID, "chars", len(text))
	if err := f.save(sess); err != nil {
		return "", err
	}
	return text, nil
}

// ContinueToSituation advances from trait analysis to situation intake.
// The analysis must already be computed.
func (f *Flow) ContinueToSituation(ctx context.Context, sess *models.Session) error {
	if sess.TraitAnalysis == "" {
		return models.ErrAnalysisNotReady
	}
	if err := f.transition(sess, models.StepTraitAnalysis, models.StepSituationIntake); err != nil {
		return err
	}
	return f.save(sess)
}

// SubmitSituation records the situation description (and optional image)
// and advances to scenario prediction. Any previously cached prediction is
// cleared so a fresh one is forced.
func (f *Flow) SubmitSituation(ctx context.Context, sess *models.Session, text, image string) error {
	if strings.TrimSpace(text) == "" {
		slog.Warn("Flow.SubmitSituation: empty situation", "sessionID", sess.ID)
		return models.ErrEmptySituation
	}
	if err := f.transition(sess, models.StepSituationIntake, models.StepScenarioPrediction); err != nil {
		return err
	}
	sess.SituationText = text
	sess.SituationImage = image
	sess.GeneralAnalysis = ""
	sess.Scenarios = nil
	sess.SelectedScenario = ""
	slog.Info("Flow.SubmitSituation: situation recorded", "sessionID", sess.ID, "has_image", image != "")
	return f.save(sess)
}

// EnsureScenarios lazily computes the scenario prediction on first entry to
// the prediction step. Parsing is total: a malformed response degrades to
// the single-scenario fallback rather than failing.
func (f *Flow) EnsureScenarios(ctx context.Context, sess *models.Session) (models.ScenarioResult, error) {
	if sess.Step != models.StepScenarioPrediction {
		return models.ScenarioResult{}, fmt.Errorf("%w: scenario prediction requires step %s, current is %s",
			models.ErrInvalidTransition, models.StepScenarioPrediction, sess.Step)
	}
	if len(sess.Scenarios) > 0 {
		return models.ScenarioResult{GeneralAnalysis: sess.GeneralAnalysis, Scenarios: sess.Scenarios}, nil
	}
	if sess.TraitAnalysis == "" {
		return models.ScenarioResult{}, models.ErrAnalysisNotReady
	}

	text, err := f.gen.Generate(ctx, prompt.Scenario(sess.TraitAnalysis, sess.SituationText), sess.SituationImage)
	if err != nil {
		slog.Error("Flow.EnsureScenarios: generation failed", "sessionID", sess.ID, "error", err)
		return models.ScenarioResult{}, fmt.Errorf("scenario prediction failed: %w", err)
	}

	result := parse.Scenario(text)
	sess.GeneralAnalysis = result.GeneralAnalysis
	sess.Scenarios = result.Scenarios
	sess.UpdatedAt = time.Now()
	slog.Info("Flow.EnsureScenarios: scenarios computed", "sessionID", sess.ID, "count", len(result.Scenarios))
	if err := f.save(sess); err != nil {
		return models.ScenarioResult{}, err
	}
	return result, nil
}

// SelectScenario grounds the chat simulation on one predicted scenario and
// enters the chat step with a cleared history.
func (f *Flow) SelectScenario(ctx context.Context, sess *models.Session, label string) error {
	scenario, ok := sess.Scenarios[label]
	if !ok || strings.TrimSpace(scenario) == "" {
		slog.Warn("Flow.SelectScenario: unknown label", "sessionID", sess.ID, "label", label)
		return models.ErrUnknownScenario
	}
	if err := f.transition(sess, models.StepScenarioPrediction, models.StepChatSimulation); err != nil {
		return err
	}
	sess.SelectedScenario = scenario
	sess.ChatHistory = nil
	slog.Info("Flow.SelectScenario: scenario selected", "sessionID", sess.ID, "label", label)
	return f.save(sess)
}

// RedoSituation steps back from scenario prediction to situation intake.
func (f *Flow) RedoSituation(ctx context.Context, sess *models.Session) error {
	if err := f.transition(sess, models.StepScenarioPrediction, models.StepSituationIntake); err != nil {
		return err
	}
	return f.save(sess)
}

// ResetScenario leaves the chat simulation and returns to situation intake.
func (f *Flow) ResetScenario(ctx context.Context, sess *models.Session) error {
	if err := f.transition(sess, models.StepChatSimulation, models.StepSituationIntake); err != nil {
		return err
	}
	return f.save(sess)
}

// Restart performs the full session reset back to the landing step. It is
// offered from the trait-analysis report and from the chat simulation.
func (f *Flow) Restart(ctx context.Context, sess *models.Session) error {
	if !canTransition(sess.Step, models.StepLanding) {
		return fmt.Errorf("%w: cannot restart from %s", models.ErrInvalidTransition, sess.Step)
	}
	sess.Reset()
	slog.Info("Flow.Restart: session reset", "sessionID", sess.ID)
	return f.save(sess)
}

// SendMessage runs one chat-simulation exchange: the user turn is appended,
// the persona reply is generated (streamed through onChunk when the gateway
// supports it; onChunk may be nil) and parsed under the strict JSON
// contract, and the assistant turn is appended as the serialized reply.
//
// The user turn is recorded even when generation fails, so history length
// never decreases; the error is returned for the caller to surface and the
// user may simply send again.
func (f *Flow) SendMessage(ctx context.Context, sess *models.Session, text string, onChunk func(string)) (*models.PersonaReply, error) {
	if sess.Step != models.StepChatSimulation {
		return nil, fmt.Errorf("%w: chat requires step %s, current is %s",
			models.ErrInvalidTransition, models.StepChatSimulation, sess.Step)
	}
	if sess.SelectedScenario == "" {
		return nil, models.ErrScenarioNotSelected
	}
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyMessage
	}

	firstTurn := len(sess.ChatHistory) == 0
	sess.AppendMessage(models.RoleUser, text)

	p := prompt.ChatReply(sess.Target, sess.TraitAnalysis, sess.SelectedScenario, sess.ChatHistory[:len(sess.ChatHistory)-1], text)

	// The situation image grounds only the first exchange; later turns rely
	// on the accumulated history.
	image := ""
	if firstTurn {
		image = sess.SituationImage
	}

	raw, err := f.generate(ctx, p, image, onChunk)
	if err != nil {
		slog.Error("Flow.SendMessage: generation failed", "sessionID", sess.ID, "error", err)
		if saveErr := f.save(sess); saveErr != nil {
			slog.Error("Flow.SendMessage: failed to persist user turn after error", "sessionID", sess.ID, "error", saveErr)
		}
		return nil, fmt.Errorf("chat reply failed: %w", err)
	}

	reply := parse.ChatReply(raw)
	serialized, err := json.Marshal(reply)
	if err != nil {
		// PersonaReply is plain strings; marshal cannot realistically fail.
		serialized = []byte(reply.Reply)
	}
	sess.AppendMessage(models.RoleAssistant, string(serialized))
	slog.Info("Flow.SendMessage: exchange completed", "sessionID", sess.ID, "history_len", len(sess.ChatHistory))
	if err := f.save(sess); err != nil {
		return nil, err
	}
	return &reply, nil
}

// generate runs a generation call, streaming when the gateway supports it.
func (f *Flow) generate(ctx context.Context, p, image string, onChunk func(string)) (string, error) {
	sg, ok := f.gen.(StreamingGenerator)
	if !ok {
		raw, err := f.gen.Generate(ctx, p, image)
		if err == nil && onChunk != nil {
			onChunk(raw)
		}
		return raw, err
	}

	stream, err := sg.GenerateStream(ctx, p, image)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		b.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// transition validates and applies a step change, in one place so every
// handler enforces the same machine.
func (f *Flow) transition(sess *models.Session, from, to models.Step) error {
	if sess.Step != from {
		slog.Warn("Flow.transition: unexpected current step", "sessionID", sess.ID, "expected", from, "current", sess.Step, "to", to)
		return fmt.Errorf("%w: expected %s, current is %s", models.ErrInvalidTransition, from, sess.Step)
	}
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	sess.Step = to
	sess.UpdatedAt = time.Now()
	slog.Debug("Flow.transition: step changed", "sessionID", sess.ID, "from", from, "to", to)
	return nil
}

func (f *Flow) save(sess *models.Session) error {
	if err := f.store.SaveSession(*sess); err != nil {
		slog.Error("Flow.save: persist failed", "sessionID", sess.ID, "error", err)
		return fmt.Errorf("failed to persist session %s: %w", sess.ID, err)
	}
	return nil
}
