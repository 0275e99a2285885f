package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Audio    AudioConfig
	Speakers SpeakersConfig
	CORS     CORSConfig
	Rate     RateConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type EngineConfig struct {
	URL           string
	Timeout       time.Duration
	MaxConcurrent int
}

type AudioConfig struct {
	OutputDir    string
	FixturePaths []string
}

type SpeakersConfig struct {
	Dir       string
	Protected []string
}

type CORSConfig struct {
	Origins []string
}

type RateConfig struct {
	RPS   int
	Burst int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	timeoutSecs, err := getEnvInt("ENGINE_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, fmt.Errorf("invalid ENGINE_TIMEOUT_SECONDS: %w", err)
	}

	maxConcurrent, err := getEnvInt("ENGINE_MAX_CONCURRENT", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid ENGINE_MAX_CONCURRENT: %w", err)
	}

	rps, err := getEnvInt("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Engine: EngineConfig{
			URL:           getEnv("ENGINE_URL", "http://localhost:50000"),
			Timeout:       time.Duration(timeoutSecs) * time.Second,
			MaxConcurrent: maxConcurrent,
		},
		Audio: AudioConfig{
			OutputDir:    getEnv("OUTPUT_DIR", "outputs"),
			FixturePaths: getEnvList("FIXTURE_PATHS", []string{"test_audio_better.wav", "test_audio_short.wav"}),
		},
		Speakers: SpeakersConfig{
			Dir:       getEnv("CUSTOM_SPEAKER_DIR", "custom_speakers"),
			Protected: getEnvList("PROTECTED_AUDIO", []string{"test_audio_better.wav", "test_audio_short.wav"}),
		},
		CORS: CORSConfig{
			Origins: getEnvList("CORS_ORIGINS", []string{"*"}),
		},
		Rate: RateConfig{
			RPS:   rps,
			Burst: burst,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Engine.URL == "" {
		missing = append(missing, "ENGINE_URL")
	}
	if c.Audio.OutputDir == "" {
		missing = append(missing, "OUTPUT_DIR")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
