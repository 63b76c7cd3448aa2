package models

import (
	"testing"
)

func TestTargetProfileValidate(t *testing.T) {
	p := TargetProfile{RelationType: "연인/썸", Name: "김팀장", Gender: "남성", BirthDate: "2000-01-01", CalendarSystem: "양력"}
	if err := p.Validate(); err != nil {
		t.Errorf("expected valid profile, got %v", err)
	}
}

func TestTargetProfileValidateEmptyName(t *testing.T) {
	cases := []string{"", "   ", "\t\n"}
	for _, name := range cases {
		p := TargetProfile{Name: name}
		if err := p.Validate(); err != ErrEmptyName {
			t.Errorf("name %q: expected ErrEmptyName, got %v", name, err)
		}
	}
}

func TestIsValidStep(t *testing.T) {
	valid := []Step{StepLanding, StepProfileIntake, StepTraitAnalysis, StepSituationIntake, StepScenarioPrediction, StepChatSimulation}
	for _, s := range valid {
		if !IsValidStep(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if IsValidStep(Step("STEP_99")) {
		t.Error("expected unknown step to be invalid")
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession("abc")
	s.Step = StepChatSimulation
	s.TraitAnalysis = "analysis"
	s.SelectedScenario = "scenario"
	s.AppendMessage(RoleUser, "hi")

	created := s.CreatedAt
	s.Reset()

	if s.ID != "abc" {
		t.Errorf("expected ID preserved, got %s", s.ID)
	}
	if s.Step != StepLanding {
		t.Errorf("expected step LANDING after reset, got %s", s.Step)
	}
	if s.TraitAnalysis != "" || s.SelectedScenario != "" {
		t.Error("expected cached analysis cleared after reset")
	}
	if len(s.ChatHistory) != 0 {
		t.Errorf("expected empty chat history after reset, got %d entries", len(s.ChatHistory))
	}
	if !s.CreatedAt.Equal(created) {
		t.Error("expected creation time preserved across reset")
	}
}

func TestAppendMessage(t *testing.T) {
	s := NewSession("abc")
	s.AppendMessage(RoleUser, "hello")
	s.AppendMessage(RoleAssistant, `{"reply":"hi"}`)
	if len(s.ChatHistory) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(s.ChatHistory))
	}
	if s.ChatHistory[0].Role != RoleUser || s.ChatHistory[1].Role != RoleAssistant {
		t.Error("unexpected message roles")
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	resp := Success(map[string]string{"k": "v"})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("expected ok status, got %s", resp.Status)
	}
	errResp := Error("boom")
	if errResp.Status != string(APIStatusError) || errResp.Message != "boom" {
		t.Errorf("unexpected error response: %+v", errResp)
	}
}
