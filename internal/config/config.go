package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Challenge struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"challenge"`
	Quota struct {
		FreeDailyLimit int      `yaml:"free_daily_limit"`
		PaidCreatorIDs []string `yaml:"paid_creator_ids"`
	} `yaml:"quota"`
	Rating struct {
		InitialRating         int `yaml:"initial_rating"`
		KFactorNew            int `yaml:"k_factor_new"`
		KFactorEstablished    int `yaml:"k_factor_established"`
		GamesThreshold        int `yaml:"games_threshold"`
		LeaderboardMinMatches int `yaml:"leaderboard_min_matches"`
	} `yaml:"rating"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
