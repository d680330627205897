package credit

import (
	"math"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/token"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/config"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// EstimateParams 操作参数。未设置的字段使用配置默认值。
type EstimateParams struct {
	// CardLength write/continue 的卡片长度档位（short/medium/long）
	CardLength string
	// CardCount write/continue 的卡片数量
	CardCount int
	// Instruction quickEdit 的编辑指令
	Instruction string
	// LengthMultiplier expand 的输出倍率覆盖，<=0 时用配置值
	LengthMultiplier float64
}

// Estimate 估价结果
type Estimate struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	Credits      int64 `json:"credits"`
}

// Estimator 把 Token 估算、操作特定的输出长度启发式与模型计价合成信用点成本。
// 确定性；既用于请求前预估，也用于终态对账（传入权威 Token 数）。
type Estimator struct {
	tokens *token.Estimator
	cfg    *config.GenerationConfig
	// unitValue 一个信用点对应的货币成本
	unitValue float64
}

// NewEstimator 创建信用点估价器
func NewEstimator(tokens *token.Estimator, genCfg *config.GenerationConfig, unitValue float64) *Estimator {
	if unitValue <= 0 {
		unitValue = 0.01
	}
	return &Estimator{
		tokens:    tokens,
		cfg:       genCfg,
		unitValue: unitValue,
	}
}

// Estimate 预估一次操作的 Token 用量与信用点成本
func (e *Estimator) Estimate(op entity.OperationType, inputText string, params EstimateParams, profile *entity.ModelProfile) Estimate {
	inputTokens := e.tokens.Estimate(inputText)
	outputTokens := e.outputHeuristic(op, inputTokens, params)
	return Estimate{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Credits:      e.Credits(inputTokens, outputTokens, profile),
	}
}

// Credits 按模型计价把 Token 数折算为信用点：
// ceil((in·cost_in + out·cost_out) / unit_value)，恒为非负整数。
func (e *Estimator) Credits(inputTokens, outputTokens int, profile *entity.ModelProfile) int64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	cost := float64(inputTokens)*profile.CostPerInputToken + float64(outputTokens)*profile.CostPerOutputToken
	credits := int64(math.Ceil(cost / e.unitValue))
	if credits < 0 {
		credits = 0
	}
	return credits
}

// outputHeuristic 操作特定的输出 Token 启发式。
// 这些常量源于产品侧的经验值而非模型推导，均可配置。
func (e *Estimator) outputHeuristic(op entity.OperationType, inputTokens int, params EstimateParams) int {
	switch op {
	case entity.OperationWrite, entity.OperationContinue:
		length := params.CardLength
		if length == "" {
			length = e.cfg.DefaultCardLength
		}
		count := params.CardCount
		if count <= 0 {
			count = e.cfg.DefaultCardCount
		}
		perCard, ok := e.cfg.CardOutputTokens[length]
		if !ok {
			perCard = e.cfg.CardOutputTokens[e.cfg.DefaultCardLength]
		}
		return perCard * count

	case entity.OperationRewrite, entity.OperationImprove:
		return inputTokens

	case entity.OperationSummarize:
		return inputTokens / 2

	case entity.OperationQuickEdit:
		return inputTokens + e.tokens.Estimate(params.Instruction)

	case entity.OperationExpand:
		mult := params.LengthMultiplier
		if mult <= 0 {
			mult = e.cfg.LengthMultiplier
		}
		if mult <= 0 {
			mult = 2
		}
		return int(float64(inputTokens) * mult)

	case entity.OperationBrainstorm, entity.OperationDescribe:
		if e.cfg.BrainstormOutputTokens > 0 {
			return e.cfg.BrainstormOutputTokens
		}
		return 200

	default:
		return inputTokens
	}
}
