package parse

import "testing"

func TestLevelOrdinal(t *testing.T) {
	tests := []struct {
		level Level
		want  int
	}{
		{Failed, 0},
		{Partial, 1},
		{Full, 2},
		{Level("bogus"), -1},
		{Level(""), -1},
	}
	for _, tt := range tests {
		if got := tt.level.Ordinal(); got != tt.want {
			t.Errorf("Ordinal(%q) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

// The string labels sort as "failed" < "full" < "partial", which does not
// match the semantic ranking. Ordinals must be the comparison basis.
func TestLevelOrderingDisagreesWithLabels(t *testing.T) {
	if !(Failed.Ordinal() < Partial.Ordinal() && Partial.Ordinal() < Full.Ordinal()) {
		t.Fatal("ordinal ranking must be Failed < Partial < Full")
	}
	if string(Partial) < string(Full) {
		t.Fatal("test premise wrong: expected label order to disagree with ordinals")
	}
}

func TestResultIsSuccessful(t *testing.T) {
	tests := []struct {
		level Level
		want  bool
	}{
		{Full, true},
		{Partial, true},
		{Failed, false},
	}
	for _, tt := range tests {
		r := &Result{Level: tt.level}
		if got := r.IsSuccessful(); got != tt.want {
			t.Errorf("IsSuccessful(%s) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestResultBestData(t *testing.T) {
	full := map[string]any{"total_score": 10}
	part := map[string]any{"total_score": 5}

	r := &Result{Data: full, Partial: part}
	if got := r.BestData(); got["total_score"] != 10 {
		t.Errorf("BestData preferred partial over validated data: %v", got)
	}

	r = &Result{Partial: part}
	if got := r.BestData(); got["total_score"] != 5 {
		t.Errorf("BestData = %v, want partial content", got)
	}
	if !r.HasUsableData() {
		t.Error("HasUsableData = false with partial content present")
	}

	r = &Result{}
	if r.BestData() != nil {
		t.Error("BestData should be nil with no data")
	}
	if r.HasUsableData() {
		t.Error("HasUsableData = true with no data")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.MaxAttempts)
	}
	if cfg.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %v, want 30", cfg.TimeoutSeconds)
	}
	if !cfg.EnableFallbackRecovery || !cfg.EnablePartialRecovery {
		t.Error("recovery options should default on")
	}
	if !cfg.AllowFieldMapping || !cfg.AllowTypeCoercion {
		t.Error("correction options should default on")
	}
}
