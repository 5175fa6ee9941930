// Copyright 2025 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings holds every runtime knob for the ingestion engine.
type Settings struct {
	// Storage
	DataDir  string `validate:"required"`
	InMemory bool

	// Scheduler
	SchedulerWorkers int           `validate:"gte=1,lte=256"`
	PollInterval     time.Duration `validate:"gt=0"`
	LockTTL          time.Duration `validate:"gt=0"`
	RetryBaseDelay   time.Duration `validate:"gt=0"`
	RetryMaxDelay    time.Duration `validate:"gt=0,gtefield=RetryBaseDelay"`
	MaxRetries       int           `validate:"gte=0"`
	RetryHorizon     time.Duration `validate:"gt=0"`

	// Flow defaults
	WaitTimeout      time.Duration `validate:"gt=0"`
	DefaultRetriever string        `validate:"required"`
	ChunkSize        int           `validate:"gte=1"`
	ChunkOverlap     int           `validate:"gte=0"`

	// Inference
	OpenAIAPIKey   string
	InferenceModel string `validate:"required"`
	EmbeddingModel string `validate:"required"`

	// Web search credentials; the google retriever is only registered
	// when both are set.
	GoogleAPIKey   string
	GoogleEngineID string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads settings from the environment, applies defaults, and
// validates the result.
func Load() (*Settings, error) {
	settings := &Settings{
		DataDir:  getEnv("QUARRY_DATA_DIR", "quarry-data"),
		InMemory: getEnv("QUARRY_IN_MEMORY", "false") == "true",

		SchedulerWorkers: getEnvInt("QUARRY_SCHEDULER_WORKERS", 8),
		PollInterval:     getEnvDuration("QUARRY_POLL_INTERVAL", time.Second),
		LockTTL:          getEnvDuration("QUARRY_LOCK_TTL", 30*time.Second),
		RetryBaseDelay:   getEnvDuration("QUARRY_RETRY_BASE_DELAY", 10*time.Second),
		RetryMaxDelay:    getEnvDuration("QUARRY_RETRY_MAX_DELAY", 60*time.Second),
		MaxRetries:       getEnvInt("QUARRY_MAX_RETRIES", 3),
		RetryHorizon:     getEnvDuration("QUARRY_RETRY_HORIZON", 24*time.Hour),

		WaitTimeout:      getEnvDuration("QUARRY_WAIT_TIMEOUT", 10*time.Minute),
		DefaultRetriever: getEnv("QUARRY_DEFAULT_RETRIEVER", "google"),
		ChunkSize:        getEnvInt("QUARRY_CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("QUARRY_CHUNK_OVERLAP", 200),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		InferenceModel: getEnv("QUARRY_INFERENCE_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("QUARRY_EMBEDDING_MODEL", "text-embedding-3-small"),

		GoogleAPIKey:   getEnv("QUARRY_GOOGLE_API_KEY", ""),
		GoogleEngineID: getEnv("QUARRY_GOOGLE_ENGINE_ID", ""),

		LogFile:  getEnv("QUARRY_LOG_FILE", ""),
		LogLevel: parseLogLevel(getEnv("QUARRY_LOG_LEVEL", "INFO")),
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Default returns the built-in settings without consulting the environment.
// Intended for tests and embedded use.
func Default() *Settings {
	return &Settings{
		DataDir:          "quarry-data",
		InMemory:         true,
		SchedulerWorkers: 8,
		PollInterval:     time.Second,
		LockTTL:          30 * time.Second,
		RetryBaseDelay:   10 * time.Second,
		RetryMaxDelay:    60 * time.Second,
		MaxRetries:       3,
		RetryHorizon:     24 * time.Hour,
		WaitTimeout:      10 * time.Minute,
		DefaultRetriever: "google",
		ChunkSize:        1000,
		ChunkOverlap:     200,
		InferenceModel:   "gpt-4o-mini",
		EmbeddingModel:   "text-embedding-3-small",
		LogLevel:         slog.LevelInfo,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings for internal consistency.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if s.ChunkOverlap >= s.ChunkSize {
		return fmt.Errorf("invalid settings: chunk overlap %d must be smaller than chunk size %d",
			s.ChunkOverlap, s.ChunkSize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
