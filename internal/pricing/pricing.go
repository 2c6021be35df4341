package pricing

import "sort"

const perMillion = 1_000_000

// Entry holds USD rates per single token.
type Entry struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Cache  float64 `json:"cache"`
}

type Table map[string]Entry

// Default returns the billing rates for the gpt-5 family.
func Default() Table {
	return Table{
		"gpt-5":      perToken(1.25, 10.00, 0.125),
		"gpt-5-mini": perToken(0.25, 2.00, 0.025),
		"gpt-5-nano": perToken(0.05, 0.40, 0.005),
	}
}

func perToken(inputPer1M, outputPer1M, cachePer1M float64) Entry {
	return Entry{
		Input:  inputPer1M / perMillion,
		Output: outputPer1M / perMillion,
		Cache:  cachePer1M / perMillion,
	}
}

// RateFor returns the rates for model, or a zero Entry when the model is unknown.
func (t Table) RateFor(model string) Entry {
	return t[model]
}

func (t Table) Models() []string {
	models := make([]string, 0, len(t))
	for m := range t {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
