package parse

import (
	"testing"

	"github.com/mindscan-ai/mindscan/internal/models"
)

const wellFormedScenario = `[종합 분석]
상대방은 현재 업무 스트레스가 높은 상태로 보입니다.

##A##
[회피 성향]
심리적으로 부담을 느껴 거리를 두는 중입니다. 시간이 필요합니다.

##B##
[단순 바쁨]
일정이 몰려 답장할 여유가 없는 상황입니다.`

func TestProfileExtractsAllFields(t *testing.T) {
	text := `**타고난 기질**: 차분하지만 고집이 센 완벽주의자입니다.
**소통 스타일**: 돌려 말하기보다 직설적인 대화를 선호합니다.
**공략 포인트**: 먼저 인정해주면 마음을 엽니다.`

	p := Profile(text)
	if p.Temperament != "차분하지만 고집이 센 완벽주의자입니다." {
		t.Errorf("unexpected temperament: %q", p.Temperament)
	}
	if p.Communication != "돌려 말하기보다 직설적인 대화를 선호합니다." {
		t.Errorf("unexpected communication: %q", p.Communication)
	}
	if p.Strategy != "먼저 인정해주면 마음을 엽니다." {
		t.Errorf("unexpected strategy: %q", p.Strategy)
	}
}

func TestProfileMissingFieldsStayEmpty(t *testing.T) {
	p := Profile("아무 마커도 없는 자유 텍스트")
	if p.Temperament != "" || p.Communication != "" || p.Strategy != "" {
		t.Errorf("expected empty fields, got %+v", p)
	}
}

func TestProfileLineWithoutColon(t *testing.T) {
	// The original takes the whole line when no colon is present.
	p := Profile("타고난 기질이 강한 사람")
	if p.Temperament != "타고난 기질이 강한 사람" {
		t.Errorf("unexpected temperament: %q", p.Temperament)
	}
}

func TestScenarioSplitsThreeSegments(t *testing.T) {
	res := Scenario(wellFormedScenario)
	if res.GeneralAnalysis != "상대방은 현재 업무 스트레스가 높은 상태로 보입니다." {
		t.Errorf("unexpected general analysis: %q", res.GeneralAnalysis)
	}
	a := res.Scenarios[models.ScenarioLabelA]
	b := res.Scenarios[models.ScenarioLabelB]
	if a == "" || b == "" {
		t.Fatalf("expected both scenarios, got A=%q B=%q", a, b)
	}
	if a[:len("[회피 성향]")] != "[회피 성향]" {
		t.Errorf("scenario A should start with its title, got %q", a)
	}
	if b[:len("[단순 바쁨]")] != "[단순 바쁨]" {
		t.Errorf("scenario B should start with its title, got %q", b)
	}
}

func TestScenarioFallbackOnMissingMarker(t *testing.T) {
	raw := "마커 없이 통으로 온 분석 텍스트"
	res := Scenario(raw)
	if res.GeneralAnalysis != FallbackGeneralAnalysis {
		t.Errorf("expected fallback general analysis, got %q", res.GeneralAnalysis)
	}
	if res.Scenarios[models.ScenarioLabelA] != raw {
		t.Errorf("expected raw text as scenario A, got %q", res.Scenarios[models.ScenarioLabelA])
	}
	if res.Scenarios[models.ScenarioLabelB] != FallbackScenarioB {
		t.Errorf("expected %q as scenario B, got %q", FallbackScenarioB, res.Scenarios[models.ScenarioLabelB])
	}
}

// Delimiters are consumed exactly once: re-parsing any produced segment
// (which no longer contains markers) lands on the fallback path.
func TestScenarioIdempotenceViaFallback(t *testing.T) {
	first := Scenario(wellFormedScenario)
	second := Scenario(first.Scenarios[models.ScenarioLabelA])
	if second.GeneralAnalysis != FallbackGeneralAnalysis {
		t.Errorf("expected fallback on re-parse, got %q", second.GeneralAnalysis)
	}
	if second.Scenarios[models.ScenarioLabelB] != FallbackScenarioB {
		t.Errorf("expected fallback scenario B on re-parse, got %q", second.Scenarios[models.ScenarioLabelB])
	}
}

func TestChatReplyFencedJSON(t *testing.T) {
	in := "```json\n{\"reply\":\"hi\",\"emotion\":\"🙂\",\"thoughts\":\"t\",\"tips\":\"tip\",\"warning\":\"w\"}\n```"
	r := ChatReply(in)
	if r.Reply != "hi" || r.Emotion != "🙂" || r.Thoughts != "t" || r.Tips != "tip" || r.Warning != "w" {
		t.Errorf("unexpected parsed reply: %+v", r)
	}
}

func TestChatReplyBareJSON(t *testing.T) {
	r := ChatReply(`{"reply":"응 알겠어","emotion":"😌","thoughts":"귀찮다","tips":"짧게 답해","warning":"늦은 밤 연락 금지"}`)
	if r.Reply != "응 알겠어" || r.Emotion != "😌" {
		t.Errorf("unexpected parsed reply: %+v", r)
	}
}

func TestChatReplyFallbackOnPlainText(t *testing.T) {
	r := ChatReply("just text")
	if r.Reply != "just text" {
		t.Errorf("expected raw text as reply, got %q", r.Reply)
	}
	if r.Emotion != DefaultEmotion {
		t.Errorf("expected default emotion, got %q", r.Emotion)
	}
	if r.Thoughts != FallbackThoughts {
		t.Errorf("expected fallback thoughts, got %q", r.Thoughts)
	}
	if r.Tips != "" || r.Warning != "" {
		t.Errorf("expected empty tips/warning, got %+v", r)
	}
}

func TestChatReplyFallbackOnEmptyReplyField(t *testing.T) {
	// A JSON object with no reply text is useless to the UI; degrade.
	r := ChatReply(`{"reply":"","emotion":"🙂"}`)
	if r.Thoughts != FallbackThoughts {
		t.Errorf("expected degraded reply, got %+v", r)
	}
}

func TestChatReplyDefaultEmotionFilled(t *testing.T) {
	r := ChatReply(`{"reply":"ㅇㅇ","thoughts":"별 생각 없음"}`)
	if r.Emotion != DefaultEmotion {
		t.Errorf("expected default emotion fill, got %q", r.Emotion)
	}
	if r.Reply != "ㅇㅇ" || r.Thoughts != "별 생각 없음" {
		t.Errorf("unexpected reply: %+v", r)
	}
}

func TestStripCodeFenceVariants(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
	}
	for in, want := range cases {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
