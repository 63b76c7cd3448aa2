// Package parse normalizes raw model output into structured records.
//
// Every parser here is total: malformed model output degrades to a valid
// placeholder value and is never surfaced as an error. Callers can rely on
// always receiving a usable result.
package parse

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mindscan-ai/mindscan/internal/models"
	"github.com/mindscan-ai/mindscan/internal/prompt"
)

// Fallback literals, kept exactly as the product surfaces them.
const (
	// FallbackGeneralAnalysis replaces the general analysis when the
	// scenario delimiters are missing.
	FallbackGeneralAnalysis = "분석 결과"
	// FallbackScenarioB fills scenario B when the response could not be split.
	FallbackScenarioB = "추가 분석 불가"
	// DefaultEmotion stands in when a chat reply carries no parsable emotion.
	DefaultEmotion = "🔮"
	// FallbackThoughts stands in when a chat reply carries no inner thoughts.
	FallbackThoughts = "정보 없음"
)

// Profile extracts the three structured fields from raw trait-analysis text.
// It scans lines for the field markers and takes the substring after the
// first colon. Fields without a matching line stay empty; this is an
// enrichment, not a required parse.
func Profile(text string) models.PersonaProfile {
	var p models.PersonaProfile
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.Contains(line, "기질") || strings.Contains(line, "성격"):
			p.Temperament = afterColon(line)
		case strings.Contains(line, "소통") || strings.Contains(line, "대화"):
			p.Communication = afterColon(line)
		case strings.Contains(line, "공략") || strings.Contains(line, "팁"):
			p.Strategy = afterColon(line)
		}
	}
	return p
}

// afterColon returns the trimmed substring after the first colon, or the
// whole line when no colon is present.
func afterColon(line string) string {
	parts := strings.SplitN(line, ":", 2)
	return stripEmphasis(strings.TrimSpace(parts[len(parts)-1]))
}

// stripEmphasis removes markdown bold markers the model tends to add around
// field values.
func stripEmphasis(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
}

// Scenario splits a scenario-prediction response into the general analysis
// and the two labeled scenarios. Both delimiter markers must be present; if
// either is missing the full raw text becomes scenario A and the fixed
// placeholders fill the rest, so the caller always receives a two-entry map.
func Scenario(text string) models.ScenarioResult {
	if !strings.Contains(text, prompt.ScenarioMarkerA) || !strings.Contains(text, prompt.ScenarioMarkerB) {
		slog.Debug("parse.Scenario: delimiters missing, degrading to single-scenario fallback")
		return models.ScenarioResult{
			GeneralAnalysis: FallbackGeneralAnalysis,
			Scenarios: map[string]string{
				models.ScenarioLabelA: text,
				models.ScenarioLabelB: FallbackScenarioB,
			},
		}
	}

	genPart, rest, _ := strings.Cut(text, prompt.ScenarioMarkerA)
	scenarioA, scenarioB, _ := strings.Cut(rest, prompt.ScenarioMarkerB)

	general := strings.TrimSpace(strings.ReplaceAll(genPart, prompt.GeneralAnalysisLabel, ""))
	return models.ScenarioResult{
		GeneralAnalysis: general,
		Scenarios: map[string]string{
			models.ScenarioLabelA: strings.TrimSpace(scenarioA),
			models.ScenarioLabelB: strings.TrimSpace(scenarioB),
		},
	}
}

// ChatReply decodes a persona chat reply from the strict JSON contract.
// Code-fence wrapping is tolerated. On any decode failure the raw text
// becomes the reply line with placeholder auxiliary fields; decode failure
// never propagates as an error.
func ChatReply(text string) models.PersonaReply {
	cleaned := StripCodeFence(text)

	var reply models.PersonaReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil || strings.TrimSpace(reply.Reply) == "" {
		if err != nil {
			slog.Debug("parse.ChatReply: JSON decode failed, degrading to raw reply", "error", err)
		}
		return models.PersonaReply{
			Reply:    strings.TrimSpace(text),
			Emotion:  DefaultEmotion,
			Thoughts: FallbackThoughts,
		}
	}
	if reply.Emotion == "" {
		reply.Emotion = DefaultEmotion
	}
	return reply
}

// StripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, and trims whitespace. Text without a fence passes through
// trimmed.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag such as "json" on the opening fence line.
	if idx := strings.Index(s, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if firstLine != "" && !strings.ContainsAny(firstLine, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
