// Package prompt builds the model prompts for Mind Scan analysis steps.
//
// Builders are pure string transforms: they never call the model and have no
// side effects. The scenario builder emits the exact delimiter markers the
// parse package consumes, and the chat builder pins the model to the strict
// single-object JSON reply contract.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mindscan-ai/mindscan/internal/models"
)

// Delimiter markers for the two-scenario prediction contract. The parser
// splits on these exact tokens.
const (
	ScenarioMarkerA = "##A##"
	ScenarioMarkerB = "##B##"
)

// GeneralAnalysisLabel prefixes the leading paragraph of a scenario response.
const GeneralAnalysisLabel = "[종합 분석]"

const traitAnalysisTemplate = `당신은 사주명리학과 점성술에 정통한 고수이자, 이를 현대 심리학 용어로 완벽하게 번역하는 프로파일러입니다.

[대상] %s(%s), %s(%s)
[관계] %s

[분석 미션]
1. (Internal): 사주(오행, 십성, 격국)와 점성술(별자리, 행성 배치)을 정밀하게 분석하세요.
2. (Output): **절대 사주 용어(갑목, 역마살 등)를 쓰지 마세요.** 대신 일반인이 이해하기 쉬운 **성격 키워드, 행동 패턴, 심리적 기제**로 표현하세요.
3. 말투는 전문적이지만 따뜻하고 이해하기 쉽게 작성하세요.

[출력 형식 (반드시 지킬 것)]
**타고난 기질**: [핵심 성격을 한 문장으로 명쾌하게]
**소통 스타일**: [대화 방식과 선호하는 소통법을 한 문장으로]
**공략 포인트**: [관계를 좋게 만드는 결정적 팁 한 문장으로]`

// TraitAnalysis renders the profile-analysis prompt for the target person.
func TraitAnalysis(target models.TargetProfile) string {
	return fmt.Sprintf(traitAnalysisTemplate,
		target.Name, target.Gender, target.BirthDate, target.CalendarSystem, target.RelationType)
}

const scenarioTemplate = `당신은 관계 분석 전문가입니다.

[정보]
- 프로필: %s
- 상황: %s

[미션]
1. 먼저 이 상황에 대한 **[종합 분석]**을 3~4문장으로 서술하세요. (객관적 상황 판단)
2. 그 후, 가장 유력한 **2가지 가능성(시나리오)**를 제시하세요.

[출력 형식 (형식을 엄격히 지켜주세요)]
[종합 분석]
(여기에 전체적인 상황 분석 내용을 적어주세요.)

##A##
[시나리오 A 제목]
(심리적/내면적 원인 중심의 설명. 3문장 이내)

##B##
[시나리오 B 제목]
(현실적/상황적 원인 중심의 설명. 3문장 이내)`

// Scenario renders the situation-diagnosis prompt. The trait analysis text
// must already be computed; the caller enforces that precondition.
func Scenario(traitAnalysis, situation string) string {
	return fmt.Sprintf(scenarioTemplate, traitAnalysis, situation)
}

const chatReplyTemplate = `너는 '%s'으로 대화하는 AI입니다.

[정보]
- 성격: %s
- 확정된 상황: %s

[대화 기록]
%s
[사용자 메시지] "%s"

[미션]
1. 위 정보를 바탕으로 '%s'이 실제로 보낼 법한 답장을 작성하세요.
2. 말투와 감정은 성격 분석과 상황에 일치해야 합니다.

[출력 형식]
코드 블록 없이 아래 JSON 객체 하나만 출력하세요. 다른 텍스트를 덧붙이지 마세요.
{"reply": "(대사)", "emotion": "(이모지 1개)", "thoughts": "(속마음 2줄 요약)", "tips": "(공략 팁 1줄)", "warning": "(주의사항 1줄)"}`

// ChatReply renders the persona-simulation prompt for one chat turn.
// History is serialized as speaker-prefixed lines, the user as 나 and the
// assistant as the target's name, matching what the persona is asked to be.
func ChatReply(target models.TargetProfile, traitAnalysis, selectedScenario string, history []models.ChatMessage, userMessage string) string {
	return fmt.Sprintf(chatReplyTemplate,
		target.Name, traitAnalysis, selectedScenario,
		FormatHistory(target.Name, history), userMessage, target.Name)
}

// FormatHistory renders chat history as speaker-prefixed lines for prompt
// embedding. Assistant entries that carry a serialized PersonaReply are
// embedded as-is; the model reads JSON fine and the reply text dominates.
func FormatHistory(targetName string, history []models.ChatMessage) string {
	if len(history) == 0 {
		return "(아직 대화 없음)\n"
	}
	var b strings.Builder
	for _, m := range history {
		speaker := targetName
		if m.Role == models.RoleUser {
			speaker = "나"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
