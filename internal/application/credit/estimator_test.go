package credit

import (
	"testing"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/token"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/config"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

func testGenConfig() *config.GenerationConfig {
	return &config.GenerationConfig{
		TokenEstimateRatio:     4.0,
		LengthMultiplier:       2.0,
		BrainstormOutputTokens: 200,
		CardOutputTokens: map[string]int{
			"short":  400,
			"medium": 750,
			"long":   1200,
		},
		DefaultCardLength: "medium",
		DefaultCardCount:  1,
	}
}

func testProfile() *entity.ModelProfile {
	return &entity.ModelProfile{
		Provider:           "openai",
		ModelName:          "gpt-test",
		ContextWindow:      8192,
		CostPerInputToken:  0.00003,
		CostPerOutputToken: 0.00006,
		SupportsStreaming:  true,
		Active:             true,
	}
}

func newTestEstimator() *Estimator {
	return NewEstimator(token.NewEstimator(4.0), testGenConfig(), 0.01)
}

// 成本场景：in=1000 out=500, cpi=0.00003 cpo=0.00006, unit=0.01
// credits = ceil((0.03+0.03)/0.01) = 6
func TestCredits_CostScenario(t *testing.T) {
	e := newTestEstimator()
	got := e.Credits(1000, 500, testProfile())
	if got != 6 {
		t.Fatalf("Credits(1000, 500) = %d, want 6", got)
	}
}

func TestCredits_NonNegative(t *testing.T) {
	e := newTestEstimator()
	if got := e.Credits(0, 0, testProfile()); got != 0 {
		t.Errorf("Credits(0, 0) = %d, want 0", got)
	}
	if got := e.Credits(-100, -50, testProfile()); got != 0 {
		t.Errorf("Credits(-100, -50) = %d, want 0", got)
	}
}

func TestEstimate_WriteUsesCardTable(t *testing.T) {
	e := newTestEstimator()

	est := e.Estimate(entity.OperationWrite, "some prompt text", EstimateParams{CardLength: "short", CardCount: 2}, testProfile())
	if est.OutputTokens != 800 {
		t.Errorf("write short x2 output = %d, want 800", est.OutputTokens)
	}

	// 未指定档位时使用默认值 medium x1
	est = e.Estimate(entity.OperationContinue, "prompt", EstimateParams{}, testProfile())
	if est.OutputTokens != 750 {
		t.Errorf("continue default output = %d, want 750", est.OutputTokens)
	}
}

func TestEstimate_InputScaledOperations(t *testing.T) {
	e := newTestEstimator()
	// 400 字符 -> 100 tokens
	input := make([]byte, 400)
	for i := range input {
		input[i] = 'x'
	}
	text := string(input)

	cases := []struct {
		op     entity.OperationType
		params EstimateParams
		want   int
	}{
		{entity.OperationRewrite, EstimateParams{}, 100},
		{entity.OperationImprove, EstimateParams{}, 100},
		{entity.OperationSummarize, EstimateParams{}, 50},
		{entity.OperationExpand, EstimateParams{}, 200},
		{entity.OperationExpand, EstimateParams{LengthMultiplier: 3}, 300},
		{entity.OperationBrainstorm, EstimateParams{}, 200},
		{entity.OperationDescribe, EstimateParams{}, 200},
	}
	for _, c := range cases {
		est := e.Estimate(c.op, text, c.params, testProfile())
		if est.OutputTokens != c.want {
			t.Errorf("%s output = %d, want %d", c.op, est.OutputTokens, c.want)
		}
		if est.InputTokens != 100 {
			t.Errorf("%s input = %d, want 100", c.op, est.InputTokens)
		}
	}
}

func TestEstimate_QuickEditAddsInstruction(t *testing.T) {
	e := newTestEstimator()
	// 40 字符输入 -> 10 tokens；20 字符指令 -> 5 tokens
	text := "0123456789012345678901234567890123456789"
	instruction := "01234567890123456789"

	est := e.Estimate(entity.OperationQuickEdit, text, EstimateParams{Instruction: instruction}, testProfile())
	if est.OutputTokens != 15 {
		t.Errorf("quickEdit output = %d, want 15", est.OutputTokens)
	}
}
