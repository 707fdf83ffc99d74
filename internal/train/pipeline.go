// Package train runs the offline training pipeline: generate labeled
// scenarios, split train/test with class stratification, fit the
// preprocessor, train the classifier, evaluate, and persist both
// artifacts. Training is a one-shot batch job run to completion before
// any inference serving starts.
package train

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"pitwall/internal/preprocess"
	"pitwall/internal/strategy"
	"pitwall/internal/synth"
	"pitwall/internal/tree"
)

// Config controls the pipeline.
type Config struct {
	Samples      int
	Seed         int64 // 0 means non-deterministic
	TestFraction float64
	Params       tree.Params
	OutputDir    string
}

// Result bundles the fitted artifacts with the held-out evaluation.
type Result struct {
	Model        *tree.Classifier
	Preprocessor *preprocess.Preprocessor
	Report       Report
}

// Run executes the full pipeline and writes artifacts under
// cfg.OutputDir.
func Run(cfg Config) (*Result, error) {
	if cfg.Samples <= 0 {
		cfg.Samples = 2000
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}

	log.Info().
		Int("samples", cfg.Samples).
		Int64("seed", cfg.Seed).
		Float64("test_fraction", cfg.TestFraction).
		Msg("generating synthetic scenarios")

	gen := synth.New(cfg.Seed)
	dataset := gen.Dataset(synth.Config{Samples: cfg.Samples})

	splitSeed := cfg.Seed
	if splitSeed == 0 {
		splitSeed = rand.Int63()
	}
	trainSet, testSet := stratifiedSplit(dataset, cfg.TestFraction, splitSeed)
	log.Info().Int("train", len(trainSet)).Int("test", len(testSet)).Msg("dataset split")

	trainScenarios := scenarios(trainSet)
	pre, err := preprocess.Fit(trainScenarios)
	if err != nil {
		return nil, fmt.Errorf("fit preprocessor: %w", err)
	}

	X, err := pre.TransformAll(trainScenarios)
	if err != nil {
		return nil, fmt.Errorf("transform training set: %w", err)
	}
	y := labels(trainSet)

	log.Info().
		Int("max_depth", cfg.Params.MaxDepth).
		Int("min_samples_split", cfg.Params.MinSamplesSplit).
		Int("min_samples_leaf", cfg.Params.MinSamplesLeaf).
		Msg("training decision tree")
	model, err := tree.Train(X, y, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("train classifier: %w", err)
	}

	report, err := Evaluate(model, pre, testSet)
	if err != nil {
		return nil, fmt.Errorf("evaluate classifier: %w", err)
	}
	report.TrainSamples = len(trainSet)
	report.TestSamples = len(testSet)

	if cfg.OutputDir != "" {
		if err := saveArtifacts(model, pre, cfg.OutputDir); err != nil {
			return nil, err
		}
	}

	return &Result{Model: model, Preprocessor: pre, Report: report}, nil
}

// stratifiedSplit shuffles each class independently and carves off the
// test fraction, so rare classes keep their share in both halves.
func stratifiedSplit(dataset []synth.Sample, testFraction float64, seed int64) (trainSet, testSet []synth.Sample) {
	rng := rand.New(rand.NewSource(seed))

	byClass := make(map[strategy.Decision][]synth.Sample)
	for _, s := range dataset {
		byClass[s.Label] = append(byClass[s.Label], s)
	}

	// Deterministic class order for reproducible splits.
	for _, label := range []strategy.Decision{strategy.PitNow, strategy.StayOut} {
		group := byClass[label]
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		cut := int(float64(len(group)) * testFraction)
		testSet = append(testSet, group[:cut]...)
		trainSet = append(trainSet, group[cut:]...)
	}

	rng.Shuffle(len(trainSet), func(i, j int) { trainSet[i], trainSet[j] = trainSet[j], trainSet[i] })
	rng.Shuffle(len(testSet), func(i, j int) { testSet[i], testSet[j] = testSet[j], testSet[i] })
	return trainSet, testSet
}

func scenarios(samples []synth.Sample) []strategy.Scenario {
	out := make([]strategy.Scenario, len(samples))
	for i, s := range samples {
		out[i] = s.Scenario
	}
	return out
}

func labels(samples []synth.Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = string(s.Label)
	}
	return out
}

// saveArtifacts writes the model and preprocessor, plus a timestamped
// model backup for rollbacks.
func saveArtifacts(model *tree.Classifier, pre *preprocess.Preprocessor, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	modelPath := filepath.Join(outputDir, "pit_strategy_model.json")
	prePath := filepath.Join(outputDir, "preprocessor.json")
	backupPath := filepath.Join(outputDir, fmt.Sprintf("pit_strategy_model_%s.json", time.Now().Format("20060102_150405")))

	if err := model.SaveFile(modelPath); err != nil {
		return err
	}
	if err := pre.SaveFile(prePath); err != nil {
		return err
	}
	if err := model.SaveFile(backupPath); err != nil {
		return err
	}

	log.Info().
		Str("model", modelPath).
		Str("preprocessor", prePath).
		Str("backup", backupPath).
		Msg("artifacts saved")
	return nil
}
