package service

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pitwall/internal/preprocess"
	"pitwall/internal/tree"
)

// ArtifactPaths names one candidate location pair for the two fitted
// artifacts. They load together or not at all.
type ArtifactPaths struct {
	Model        string
	Preprocessor string
}

// DefaultArtifactPaths mirrors the trainer's output locations: the
// working directory first, then the trainer's output directory.
func DefaultArtifactPaths() []ArtifactPaths {
	return []ArtifactPaths{
		{Model: "pit_strategy_model.json", Preprocessor: "preprocessor.json"},
		{Model: "output/pit_strategy_model.json", Preprocessor: "output/preprocessor.json"},
	}
}

// LoadArtifacts walks the candidate pairs and loads the first pair where
// both files exist. Missing artifacts are a startup-fatal condition: the
// returned error tells the operator to run the trainer first.
func LoadArtifacts(candidates []ArtifactPaths) (*tree.Classifier, *preprocess.Preprocessor, time.Time, error) {
	for _, c := range candidates {
		if !fileExists(c.Model) || !fileExists(c.Preprocessor) {
			continue
		}

		model, err := tree.LoadFile(c.Model)
		if err != nil {
			return nil, nil, time.Time{}, fmt.Errorf("load model artifact: %w", err)
		}
		pre, err := preprocess.LoadFile(c.Preprocessor)
		if err != nil {
			return nil, nil, time.Time{}, fmt.Errorf("load preprocessor artifact: %w", err)
		}

		var trained time.Time
		if info, err := os.Stat(c.Model); err == nil {
			trained = info.ModTime()
		}

		log.Info().
			Str("model", c.Model).
			Str("preprocessor", c.Preprocessor).
			Int("tree_depth", model.Depth).
			Int("feature_size", model.FeatureSize).
			Msg("model artifacts loaded")
		return model, pre, trained, nil
	}

	searched := make([]string, len(candidates))
	for i, c := range candidates {
		searched[i] = fmt.Sprintf("%s and %s", c.Model, c.Preprocessor)
	}
	return nil, nil, time.Time{}, fmt.Errorf(
		"model artifacts not found, searched: %s; run the trainer first to generate them",
		strings.Join(searched, "; "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
