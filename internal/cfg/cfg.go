// Package cfg loads service configuration from a YAML file named by
// CONFIG_FILE, with environment-variable overrides and validated
// defaults.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	ServerPort       int
	MetricsPort      int
	DataPath         string // optional; empty disables the audit store
	ModelPath        string
	PreprocessorPath string

	FeedURL        string // optional; empty disables the live feed
	PublishURL     string // optional; empty disables upstream publishing
	PingInterval   time.Duration
	RESTTimeout    time.Duration
	DedupSize      int

	TrainSamples    int
	TrainSeed       int64
	TestFraction    float64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
}

// ConfigFile is the YAML schema.
type ConfigFile struct {
	Server struct {
		Port        int    `yaml:"port"`
		MetricsPort int    `yaml:"metricsPort"`
		DataPath    string `yaml:"dataPath"`
	} `yaml:"server"`

	Model struct {
		Path             string `yaml:"path"`
		PreprocessorPath string `yaml:"preprocessorPath"`
	} `yaml:"model"`

	Feed struct {
		URL          string `yaml:"url"`
		PublishURL   string `yaml:"publishURL"`
		PingInterval string `yaml:"pingInterval"`
		RESTTimeout  string `yaml:"restTimeout"`
		DedupSize    int    `yaml:"dedupSize"`
	} `yaml:"feed"`

	Training struct {
		Samples         int     `yaml:"samples"`
		Seed            int64   `yaml:"seed"`
		TestFraction    float64 `yaml:"testFraction"`
		MaxDepth        int     `yaml:"maxDepth"`
		MinSamplesSplit int     `yaml:"minSamplesSplit"`
		MinSamplesLeaf  int     `yaml:"minSamplesLeaf"`
	} `yaml:"training"`
}

// Load resolves settings from the YAML file named by CONFIG_FILE if set,
// otherwise from environment variables alone.
func Load() (Settings, error) {
	var file ConfigFile
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	settings := Settings{
		ServerPort:       getIntFromEnvOrConfig("SERVER_PORT", file.Server.Port, 3000),
		MetricsPort:      getIntFromEnvOrConfig("METRICS_PORT", file.Server.MetricsPort, 9100),
		DataPath:         getEnvOrDefault("DATA_PATH", file.Server.DataPath),
		ModelPath:        getEnvOrDefault("MODEL_PATH", defaultString(file.Model.Path, "output/pit_strategy_model.json")),
		PreprocessorPath: getEnvOrDefault("PREPROCESSOR_PATH", defaultString(file.Model.PreprocessorPath, "output/preprocessor.json")),
		FeedURL:          getEnvOrDefault("FEED_URL", file.Feed.URL),
		PublishURL:       getEnvOrDefault("PUBLISH_URL", file.Feed.PublishURL),
		PingInterval:     getDurationFromEnvOrConfig("PING_INTERVAL", file.Feed.PingInterval, 15*time.Second),
		RESTTimeout:      getDurationFromEnvOrConfig("REST_TIMEOUT", file.Feed.RESTTimeout, 5*time.Second),
		DedupSize:        getIntFromEnvOrConfig("DEDUP_SIZE", file.Feed.DedupSize, 4096),
		TrainSamples:     getIntFromEnvOrConfig("TRAIN_SAMPLES", file.Training.Samples, 2000),
		TrainSeed:        getInt64FromEnvOrConfig("TRAIN_SEED", file.Training.Seed, 0),
		TestFraction:     getFloatFromEnvOrConfig("TEST_FRACTION", file.Training.TestFraction, 0.2),
		MaxDepth:         getIntFromEnvOrConfig("MAX_DEPTH", file.Training.MaxDepth, 7),
		MinSamplesSplit:  getIntFromEnvOrConfig("MIN_SAMPLES_SPLIT", file.Training.MinSamplesSplit, 10),
		MinSamplesLeaf:   getIntFromEnvOrConfig("MIN_SAMPLES_LEAF", file.Training.MinSamplesLeaf, 5),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func validateSettings(s *Settings) error {
	if s.ServerPort < 1 || s.ServerPort > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", s.ServerPort)
	}
	if s.MetricsPort < 1024 || s.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", s.MetricsPort)
	}
	if s.ServerPort == s.MetricsPort {
		return fmt.Errorf("server port and metrics port must differ, both are %d", s.ServerPort)
	}
	if s.ModelPath == "" || s.PreprocessorPath == "" {
		return fmt.Errorf("model and preprocessor paths cannot be empty")
	}
	if s.PingInterval < time.Second || s.PingInterval > 5*time.Minute {
		return fmt.Errorf("ping interval must be between 1s and 5m, got %v", s.PingInterval)
	}
	if s.RESTTimeout < time.Second || s.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", s.RESTTimeout)
	}
	if s.DedupSize <= 0 || s.DedupSize > 1<<20 {
		return fmt.Errorf("dedup size must be between 1 and %d, got %d", 1<<20, s.DedupSize)
	}
	if s.TrainSamples < 100 || s.TrainSamples > 1_000_000 {
		return fmt.Errorf("training samples must be between 100 and 1000000, got %d", s.TrainSamples)
	}
	if s.TestFraction <= 0 || s.TestFraction >= 0.5 {
		return fmt.Errorf("test fraction must be between 0 and 0.5, got %f", s.TestFraction)
	}
	if s.MaxDepth < 5 || s.MaxDepth > 8 {
		return fmt.Errorf("max depth must be between 5 and 8, got %d", s.MaxDepth)
	}
	if s.MinSamplesSplit < 2 {
		return fmt.Errorf("min samples split must be at least 2, got %d", s.MinSamplesSplit)
	}
	if s.MinSamplesLeaf < 1 {
		return fmt.Errorf("min samples leaf must be at least 1, got %d", s.MinSamplesLeaf)
	}
	return nil
}

func defaultString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getDurationFromEnvOrConfig(key, configValue string, defaultValue time.Duration) time.Duration {
	if env := os.Getenv(key); env != "" {
		if d, err := time.ParseDuration(env); err == nil {
			return d
		}
	}
	if configValue != "" {
		if d, err := time.ParseDuration(configValue); err == nil {
			return d
		}
	}
	return defaultValue
}
