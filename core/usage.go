package core

// TokenUsage counts the tokens consumed by a single model call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// Usage accumulates token counts across the calls of a run. It is carried
// explicitly through the call chain and merged into the run state at the end;
// there is no process-global accumulator.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Calls        int `json:"calls"`
}

// Add folds one call's token usage into the accumulator.
func (u *Usage) Add(t TokenUsage) {
	u.InputTokens += t.InputTokens
	u.OutputTokens += t.OutputTokens
	u.Calls++
}

// Merge folds another accumulator into this one.
func (u *Usage) Merge(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.Calls += o.Calls
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// ModelPricing is the dollar price per million tokens for one model.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Pricing lists known per-model prices used for cost estimation. Unknown
// models fall back to the cheapest entry.
var Pricing = map[string]ModelPricing{
	"gpt-4o-mini":            {InputPerMTok: 0.150, OutputPerMTok: 0.600},
	"gpt-4-turbo":            {InputPerMTok: 10.00, OutputPerMTok: 30.00},
	"gpt-4":                  {InputPerMTok: 30.00, OutputPerMTok: 60.00},
	"text-embedding-3-small": {InputPerMTok: 0.020, OutputPerMTok: 0},
}

// EstimateCost returns the estimated dollar cost of the accumulated usage for
// the named model.
func (u Usage) EstimateCost(model string) float64 {
	p, ok := Pricing[model]
	if !ok {
		p = Pricing["gpt-4o-mini"]
	}
	return float64(u.InputTokens)/1_000_000*p.InputPerMTok +
		float64(u.OutputTokens)/1_000_000*p.OutputPerMTok
}
