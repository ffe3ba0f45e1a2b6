// Package cost attributes estimated USD spend to LLM and OCR usage.
package cost

import (
	"github.com/firstkey-holdings/loanproc/pkg/azopenai"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Azure    map[string]ModelRate `yaml:"azure" mapstructure:"azure"`
	DocIntel DocIntelRate         `yaml:"docintel" mapstructure:"docintel"`
}

// ModelRate holds per-deployment token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// DocIntelRate holds Document Intelligence pricing (USD per 1000 pages).
type DocIntelRate struct {
	PerThousandPages float64 `yaml:"per_thousand_pages" mapstructure:"per_thousand_pages"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Chat computes the cost for an Azure OpenAI chat completion. Unknown
// deployments cost zero.
func (c *Calculator) Chat(deployment string, usage azopenai.TokenUsage) float64 {
	rate, ok := c.rates.Azure[deployment]
	if !ok {
		return 0
	}
	inCost := (float64(usage.PromptTokens) / 1e6) * rate.Input
	outCost := (float64(usage.CompletionTokens) / 1e6) * rate.Output
	return inCost + outCost
}

// OCRPages computes the cost for analyzing n pages.
func (c *Calculator) OCRPages(n int) float64 {
	return (float64(n) / 1000) * c.rates.DocIntel.PerThousandPages
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Azure: map[string]ModelRate{
			"gpt-4o":      {Input: 2.50, Output: 10.00},
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"gpt-4.1":     {Input: 2.00, Output: 8.00},
		},
		DocIntel: DocIntelRate{PerThousandPages: 10.00},
	}
}
