package synth

import (
	"testing"

	"pitwall/internal/strategy"
)

func TestDataset_FixedSeedIsReproducible(t *testing.T) {
	t.Parallel()

	cfg := Config{Samples: 500}
	a := New(42).Dataset(cfg)
	b := New(42).Dataset(cfg)

	if len(a) != len(b) {
		t.Fatalf("dataset sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestDataset_DifferentSeedsDiffer(t *testing.T) {
	t.Parallel()

	cfg := Config{Samples: 200}
	a := New(1).Dataset(cfg)
	b := New(2).Dataset(cfg)

	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	if same == len(a) {
		t.Error("different seeds produced identical datasets")
	}
}

func TestDataset_SizeAndBounds(t *testing.T) {
	t.Parallel()

	samples := New(7).Dataset(Config{Samples: 1000})
	if len(samples) != 1000 {
		t.Fatalf("expected 1000 samples, got %d", len(samples))
	}

	for i, s := range samples {
		sc := s.Scenario
		if sc.TireWearPct < 0 || sc.TireWearPct > 100 {
			t.Errorf("sample %d: tire wear %.2f out of [0,100]", i, sc.TireWearPct)
		}
		if sc.PerfDropSeconds < 0.1 || sc.PerfDropSeconds > 4.5 {
			t.Errorf("sample %d: performance drop %.2f out of [0.1,4.5]", i, sc.PerfDropSeconds)
		}
		if sc.TrackPosition < 1 || sc.TrackPosition > 20 {
			t.Errorf("sample %d: track position %d out of [1,20]", i, sc.TrackPosition)
		}
		if !sc.RaceIncident.Valid() {
			t.Errorf("sample %d: invalid incident %q", i, sc.RaceIncident)
		}
		if sc.UndercutOpportunity != 0 && sc.UndercutOpportunity != 1 {
			t.Errorf("sample %d: undercut flag %d not binary", i, sc.UndercutOpportunity)
		}
		if sc.LapsSincePit < 0 {
			t.Errorf("sample %d: negative stint age %d", i, sc.LapsSincePit)
		}
	}
}

func TestDataset_LabelsMatchOracle(t *testing.T) {
	t.Parallel()

	for _, s := range New(11).Dataset(Config{Samples: 500}) {
		if want := strategy.Decide(s.Scenario); s.Label != want {
			t.Fatalf("label %q disagrees with oracle %q for %+v", s.Label, want, s.Scenario)
		}
	}
}

func TestDataset_BothClassesPresent(t *testing.T) {
	t.Parallel()

	// The fresh-tire stratum guarantees STAY OUT samples and the safety
	// car stratum guarantees PIT NOW, so any seed must yield both.
	for seed := int64(1); seed <= 5; seed++ {
		var pit, stay int
		for _, s := range New(seed).Dataset(Config{Samples: 200}) {
			if s.Label == strategy.PitNow {
				pit++
			} else {
				stay++
			}
		}
		if pit == 0 || stay == 0 {
			t.Errorf("seed %d: class missing (pit=%d stay=%d)", seed, pit, stay)
		}
	}
}

func TestDataset_CriticalStrataCovered(t *testing.T) {
	t.Parallel()

	samples := New(3).Dataset(Config{Samples: 1000})

	var safetyCar, vsc, criticalWear, fresh int
	for _, s := range samples {
		sc := s.Scenario
		switch {
		case sc.RaceIncident == strategy.IncidentSafetyCar:
			safetyCar++
		case sc.RaceIncident == strategy.IncidentVSC:
			vsc++
		case sc.TireWearPct > 85:
			criticalWear++
		case sc.TireWearPct <= 25 && sc.PerfDropSeconds <= 0.8:
			fresh++
		}
	}

	// Each critical stratum holds ~6% of the dataset, so every family
	// must be well represented.
	if safetyCar < 30 {
		t.Errorf("too few safety car samples: %d", safetyCar)
	}
	if vsc < 30 {
		t.Errorf("too few VSC samples: %d", vsc)
	}
	if criticalWear < 30 {
		t.Errorf("too few critical wear samples: %d", criticalWear)
	}
	if fresh < 30 {
		t.Errorf("too few fresh tire samples: %d", fresh)
	}
}

func TestDataset_CriticalFraction(t *testing.T) {
	t.Parallel()

	// With CriticalFraction 1.0 falling back to the default, check an
	// explicit 0.5 routes about half the samples into critical strata.
	samples := New(9).Dataset(Config{Samples: 1000, CriticalFraction: 0.5})

	var incidents int
	for _, s := range samples {
		if s.Scenario.RaceIncident == strategy.IncidentSafetyCar || s.Scenario.RaceIncident == strategy.IncidentVSC {
			incidents++
		}
	}
	// Two of five critical strata force an incident: expect roughly 20%
	// plus the small organic rate from the normal population.
	if incidents < 150 || incidents > 320 {
		t.Errorf("incident count %d outside expected band for 0.5 critical fraction", incidents)
	}
}

func TestDataset_EmptyAndInvalidConfig(t *testing.T) {
	t.Parallel()

	if got := New(1).Dataset(Config{Samples: 0}); got != nil {
		t.Errorf("zero samples should yield nil, got %d", len(got))
	}
	if got := New(1).Dataset(Config{Samples: -5}); got != nil {
		t.Errorf("negative samples should yield nil, got %d", len(got))
	}
}

func BenchmarkDataset(b *testing.B) {
	g := New(42)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Dataset(Config{Samples: 1000})
	}
}
