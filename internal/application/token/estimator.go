// Package token 提供文本到 Token 数的确定性估算
package token

import "math"

// DefaultCharsPerToken 默认字符/Token 比率
const DefaultCharsPerToken = 4.0

// Estimator 基于字符比率的 Token 估算器。
// 纯函数式，无副作用；精度足够计费预估，不用于精确计数。
type Estimator struct {
	ratio float64
}

// NewEstimator 创建估算器，ratio<=0 时使用默认比率
func NewEstimator(ratio float64) *Estimator {
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	return &Estimator{ratio: ratio}
}

// Estimate 估算文本的 Token 数：ceil(len(text)/ratio)
func (e *Estimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / e.ratio))
}

// Ratio 返回配置的字符/Token 比率
func (e *Estimator) Ratio() float64 {
	return e.ratio
}
