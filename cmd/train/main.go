package main

import (
	"flag"
	"fmt"
	"os"

	"pitwall/internal/cfg"
	"pitwall/internal/train"
	"pitwall/internal/tree"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		samples      = flag.Int("samples", 0, "Number of synthetic scenarios (overrides config)")
		seed         = flag.Int64("seed", 0, "Random seed, 0 for non-deterministic (overrides config)")
		maxDepth     = flag.Int("max-depth", 0, "Maximum tree depth (overrides config)")
		testFraction = flag.Float64("test-fraction", 0, "Held-out fraction for evaluation (overrides config)")
		outputDir    = flag.String("output", "output", "Output directory for artifacts and reports")
		logLevel     = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if *samples > 0 {
		config.TrainSamples = *samples
	}
	if *seed != 0 {
		config.TrainSeed = *seed
	}
	if *maxDepth > 0 {
		config.MaxDepth = *maxDepth
	}
	if *testFraction > 0 {
		config.TestFraction = *testFraction
	}

	fmt.Println("=== Training Configuration ===")
	fmt.Printf("Samples: %d\n", config.TrainSamples)
	fmt.Printf("Seed: %d\n", config.TrainSeed)
	fmt.Printf("Max Depth: %d\n", config.MaxDepth)
	fmt.Printf("Test Fraction: %.2f\n", config.TestFraction)
	fmt.Printf("Output Directory: %s\n", *outputDir)
	fmt.Println("==============================")

	result, err := train.Run(train.Config{
		Samples:      config.TrainSamples,
		Seed:         config.TrainSeed,
		TestFraction: config.TestFraction,
		Params: tree.Params{
			MaxDepth:        config.MaxDepth,
			MinSamplesSplit: config.MinSamplesSplit,
			MinSamplesLeaf:  config.MinSamplesLeaf,
			Balanced:        true,
		},
		OutputDir: *outputDir,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}

	if err := train.WriteReport(result.Report, result.Model, result.Preprocessor, *outputDir); err != nil {
		log.Error().Err(err).Msg("Failed to generate reports")
	}

	log.Info().
		Str("output", *outputDir).
		Str("evaluation", train.FormatReport(result.Report)).
		Msg("Training completed successfully")
}
