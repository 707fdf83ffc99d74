// Package synth manufactures labeled training scenarios. A 70% "normal"
// population is drawn from race-wide distributions; the remaining 30% is
// split across five critical strata so the classifier sees enough safety
// car, VSC, critical-wear, fresh-tire and high-degradation examples even
// though they are rare in real races.
package synth

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog/log"

	"pitwall/internal/strategy"
)

// Sample pairs a generated scenario with its oracle label.
type Sample struct {
	Scenario strategy.Scenario
	Label    strategy.Decision
}

// Config controls dataset generation.
type Config struct {
	Samples          int     // total scenarios to generate
	CriticalFraction float64 // share routed to the critical strata, default 0.3
}

// Generator produces labeled synthetic scenarios from a private RNG so a
// fixed seed yields a bit-identical dataset.
type Generator struct {
	rng *rand.Rand
}

// New creates a generator. Seed 0 picks a random source.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = rand.Int63()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// stratum identifiers, one per critical scenario family.
const (
	stratumSafetyCar = iota
	stratumVSC
	stratumCriticalWear
	stratumFreshTire
	stratumHighDegradation
	numStrata
)

// Dataset generates cfg.Samples scenarios and labels each one with the
// decision oracle. Critical samples are spread evenly across the five
// strata.
func (g *Generator) Dataset(cfg Config) []Sample {
	if cfg.Samples <= 0 {
		return nil
	}
	frac := cfg.CriticalFraction
	if frac <= 0 || frac >= 1 {
		frac = 0.3
	}

	critical := int(math.Round(float64(cfg.Samples) * frac))
	normal := cfg.Samples - critical

	samples := make([]Sample, 0, cfg.Samples)
	for i := 0; i < normal; i++ {
		samples = append(samples, g.label(g.normalScenario()))
	}
	for i := 0; i < critical; i++ {
		samples = append(samples, g.label(g.criticalScenario(i%numStrata)))
	}

	var pit int
	for _, s := range samples {
		if s.Label == strategy.PitNow {
			pit++
		}
	}
	log.Debug().
		Int("samples", len(samples)).
		Int("pit_now", pit).
		Int("stay_out", len(samples)-pit).
		Msg("synthetic dataset generated")

	return samples
}

func (g *Generator) label(s strategy.Scenario) Sample {
	return Sample{Scenario: s, Label: strategy.Decide(s)}
}

// normalScenario draws from the race-wide population. Performance drop is
// coupled super-linearly to wear plus additive noise: degradation
// accelerates as the tire goes off.
func (g *Generator) normalScenario() strategy.Scenario {
	wear := float64(5 + g.rng.Intn(93)) // [5,97]
	s := strategy.Scenario{
		UndercutOpportunity: g.bernoulli(0.3),
		TireWearPct:         wear,
		PerfDropSeconds:     g.dropForWear(wear),
		TrackPosition:       1 + g.rng.Intn(20),
		RaceIncident:        g.incident(),
		LapsSincePit:        g.lapsForWear(wear),
	}
	return s
}

// criticalScenario draws from one of the five stratified buckets.
func (g *Generator) criticalScenario(stratum int) strategy.Scenario {
	switch stratum {
	case stratumSafetyCar, stratumVSC:
		incident := strategy.IncidentSafetyCar
		if stratum == stratumVSC {
			incident = strategy.IncidentVSC
		}
		wear := g.uniform(15, 85)
		return strategy.Scenario{
			UndercutOpportunity: g.bernoulli(0.3),
			TireWearPct:         wear,
			PerfDropSeconds:     g.dropForWear(wear),
			TrackPosition:       1 + g.rng.Intn(20),
			RaceIncident:        incident,
			LapsSincePit:        g.lapsForWear(wear),
		}
	case stratumCriticalWear:
		wear := g.uniform(85, 98)
		return strategy.Scenario{
			UndercutOpportunity: g.bernoulli(0.3),
			TireWearPct:         wear,
			PerfDropSeconds:     g.uniform(2.5, 4.5),
			TrackPosition:       1 + g.rng.Intn(20),
			RaceIncident:        strategy.IncidentNone,
			LapsSincePit:        g.lapsForWear(wear),
		}
	case stratumFreshTire:
		wear := g.uniform(5, 25)
		return strategy.Scenario{
			UndercutOpportunity: 0,
			TireWearPct:         wear,
			PerfDropSeconds:     g.uniform(0.1, 0.8),
			TrackPosition:       1 + g.rng.Intn(20),
			RaceIncident:        strategy.IncidentNone,
			LapsSincePit:        g.lapsForWear(wear),
		}
	default: // stratumHighDegradation
		wear := g.uniform(66, 85)
		return strategy.Scenario{
			UndercutOpportunity: g.bernoulli(0.3),
			TireWearPct:         wear,
			PerfDropSeconds:     g.uniform(2.6, 4.5),
			TrackPosition:       1 + g.rng.Intn(20),
			RaceIncident:        strategy.IncidentNone,
			LapsSincePit:        g.lapsForWear(wear),
		}
	}
}

// dropForWear models lap-time loss: uniform base scaled by wear^1.5 plus
// noise, clamped to the plausible [0.1, 4.5] band.
func (g *Generator) dropForWear(wear float64) float64 {
	base := g.uniform(0.1, 4.5) * math.Pow(wear/100, 1.5)
	noise := g.uniform(-0.5, 1.5)
	return clamp(base+noise, 0.1, 4.5)
}

// lapsForWear derives stint age from wear with a little jitter. The oracle
// never reads this field; it exists so the classifier trains against the
// extended telemetry schema.
func (g *Generator) lapsForWear(wear float64) int {
	laps := int(math.Round(wear/100*30)) + g.rng.Intn(7) - 3
	if laps < 0 {
		laps = 0
	}
	return laps
}

// incident draws track status with realistic rarity: mostly green running,
// occasionally a yellow, rarely a safety car or VSC.
func (g *Generator) incident() strategy.Incident {
	r := g.rng.Float64()
	switch {
	case r < 0.85:
		return strategy.IncidentNone
	case r < 0.93:
		return strategy.IncidentYellowFlag
	case r < 0.97:
		return strategy.IncidentSafetyCar
	default:
		return strategy.IncidentVSC
	}
}

func (g *Generator) bernoulli(p float64) int {
	if g.rng.Float64() < p {
		return 1
	}
	return 0
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
