package pricing

import (
	"math"
	"testing"
)

func TestRateFor_Known(t *testing.T) {
	table := Default()
	e := table.RateFor("gpt-5")

	if math.Abs(e.Input*1_000_000-1.25) > 1e-9 {
		t.Errorf("Expected input rate 1.25/1M, got %g", e.Input)
	}
	if math.Abs(e.Output*1_000_000-10.0) > 1e-9 {
		t.Errorf("Expected output rate 10/1M, got %g", e.Output)
	}
	if math.Abs(e.Cache*1_000_000-0.125) > 1e-9 {
		t.Errorf("Expected cache rate 0.125/1M, got %g", e.Cache)
	}
}

func TestRateFor_UnknownIsZero(t *testing.T) {
	e := Default().RateFor("gpt-unknown")
	if e != (Entry{}) {
		t.Errorf("Expected zero entry, got %+v", e)
	}
}

func TestModels_Sorted(t *testing.T) {
	models := Default().Models()
	want := []string{"gpt-5", "gpt-5-mini", "gpt-5-nano"}
	if len(models) != len(want) {
		t.Fatalf("Expected %d models, got %d", len(want), len(models))
	}
	for i := range want {
		if models[i] != want[i] {
			t.Errorf("models[%d] = %s, want %s", i, models[i], want[i])
		}
	}
}
