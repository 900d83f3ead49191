package analyzer

import (
	"context"
	"testing"

	"lectern/pkg/types"
)

func TestSimulatedRanges(t *testing.T) {
	a := NewSimulated(1)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		sample, err := a.Analyze(ctx, types.RawInput{})
		if err != nil {
			t.Fatalf("analyze failed: %v", err)
		}

		checks := []struct {
			name     string
			v        float64
			lo, hi   float64
		}{
			{"confidence", sample.Voice.Confidence, 70, 95},
			{"volume", sample.Voice.Volume, 65, 95},
			{"clarity", sample.Voice.Clarity, 75, 95},
			{"audibility", sample.Voice.Audibility, 80, 95},
			{"engagement_level", sample.Facial.EngagementLevel, 70, 95},
			{"expression_variety", sample.Facial.ExpressionVariety, 65, 95},
		}
		for _, c := range checks {
			if c.v < c.lo || c.v > c.hi {
				t.Errorf("%s = %v outside [%v,%v]", c.name, c.v, c.lo, c.hi)
			}
		}

		if !types.IsValidEmotion(sample.Facial.Emotion) {
			t.Errorf("simulated emotion %q outside vocabulary", sample.Facial.Emotion)
		}
	}
}

func TestSimulatedReproducibleWithSeed(t *testing.T) {
	ctx := context.Background()
	a1 := NewSimulated(42)
	a2 := NewSimulated(42)

	for i := 0; i < 10; i++ {
		s1, _ := a1.Analyze(ctx, types.RawInput{})
		s2, _ := a2.Analyze(ctx, types.RawInput{})
		if s1.Voice != s2.Voice || s1.Facial != s2.Facial {
			t.Fatalf("same seed diverged at sample %d: %+v vs %+v", i, s1, s2)
		}
	}
}

func TestPassthroughMapsClientMetrics(t *testing.T) {
	a := NewPassthrough()
	sample, err := a.Analyze(context.Background(), types.RawInput{
		AudioData:  map[string]float64{"confidence": 61.5, "volume": 55, "clarity": 72, "audibility": 88},
		VideoFrame: map[string]float64{"engagement_level": 66, "expression_variety": 59},
		Emotion:    "engaged",
	})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if sample.Voice.Confidence != 61.5 || sample.Voice.Audibility != 88 {
		t.Errorf("voice metrics not passed through: %+v", sample.Voice)
	}
	if sample.Facial.EngagementLevel != 66 || sample.Facial.Emotion != "engaged" {
		t.Errorf("facial metrics not passed through: %+v", sample.Facial)
	}
}

func TestPassthroughDefaultsForMissingMetrics(t *testing.T) {
	a := NewPassthrough()
	sample, err := a.Analyze(context.Background(), types.RawInput{Emotion: "furious"})
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if sample.Voice.Confidence != 70 || sample.Voice.Volume != 65 || sample.Voice.Clarity != 75 || sample.Voice.Audibility != 80 {
		t.Errorf("missing voice metrics should fall back to baseline: %+v", sample.Voice)
	}
	if sample.Facial.EngagementLevel != 70 || sample.Facial.ExpressionVariety != 65 {
		t.Errorf("missing facial metrics should fall back to baseline: %+v", sample.Facial)
	}
	if sample.Facial.Emotion != "neutral" {
		t.Errorf("invalid emotion should fall back to neutral, got %q", sample.Facial.Emotion)
	}
}

func TestDynamicSwap(t *testing.T) {
	ctx := context.Background()
	d := NewDynamic(NewPassthrough())

	raw := types.RawInput{AudioData: map[string]float64{"confidence": 10}}
	s, err := d.Analyze(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	if s.Voice.Confidence != 10 {
		t.Errorf("expected passthrough delegate, got confidence %v", s.Voice.Confidence)
	}

	d.Set(NewSimulated(7))
	s, err = d.Analyze(ctx, raw)
	if err != nil {
		t.Fatal(err)
	}
	if s.Voice.Confidence < 70 {
		t.Errorf("expected simulated delegate after swap, got confidence %v", s.Voice.Confidence)
	}
}

func TestForMode(t *testing.T) {
	if _, ok := ForMode(ModePassthrough, 0).(*Passthrough); !ok {
		t.Error("passthrough mode should build a Passthrough")
	}
	if _, ok := ForMode(ModeSimulated, 0).(*Simulated); !ok {
		t.Error("simulated mode should build a Simulated")
	}
	if _, ok := ForMode("unknown", 0).(*Simulated); !ok {
		t.Error("unknown mode should fall back to Simulated")
	}
}
