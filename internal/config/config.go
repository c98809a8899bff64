// Package config loads runtime configuration from environment variables,
// with defaults that work out of the box for local runs.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mangashelf/internal/scanner"
)

// Config is the whole application configuration.
type Config struct {
	App       AppConfig
	Data      DataConfig
	Sync      SyncConfig
	Providers ProviderConfig
}

type AppConfig struct {
	Environment string // development, production
	APIAddr     string
}

type DataConfig struct {
	Dir            string // root data directory
	MangaDir       string
	AnimeDir       string
	CoversDir      string
	MangaIndexPath string
	AnimeDBPath    string
}

type SyncConfig struct {
	ScanInterval     time.Duration // catalog scan + anime refresh
	DownloadInterval time.Duration // offline database re-download
	AnimeDBURL       string
	HydrationWorkers int
	CoverWorkers     int
}

// ProviderConfig overrides the metadata provider endpoints; empty values
// select the public APIs.
type ProviderConfig struct {
	KitsuBaseURL string
	AniListURL   string
	JikanBaseURL string
}

// Load reads the configuration from the environment.
func Load() Config {
	dataDir := getEnv("MANGASHELF_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = "."
		}
		dataDir = filepath.Join(home, ".mangashelf", "data")
	}

	return Config{
		App: AppConfig{
			Environment: getEnv("MANGASHELF_ENV", "development"),
			APIAddr:     getEnv("MANGASHELF_API_ADDR", ":8080"),
		},
		Data: DataConfig{
			Dir:            dataDir,
			MangaDir:       filepath.Join(dataDir, "manga"),
			AnimeDir:       filepath.Join(dataDir, "anime"),
			CoversDir:      filepath.Join(dataDir, "covers"),
			MangaIndexPath: getEnv("MANGASHELF_MANGA_INDEX", filepath.Join(dataDir, "mangadex_index.json")),
			AnimeDBPath:    getEnv("MANGASHELF_ANIME_DB", filepath.Join(dataDir, "anime-offline-database.json")),
		},
		Sync: SyncConfig{
			ScanInterval:     getEnvDuration("MANGASHELF_SCAN_INTERVAL", time.Hour),
			DownloadInterval: getEnvDuration("MANGASHELF_DOWNLOAD_INTERVAL", 24*time.Hour),
			AnimeDBURL:       getEnv("MANGASHELF_ANIME_DB_URL", scanner.DefaultDatabaseURL),
			HydrationWorkers: getEnvInt("MANGASHELF_HYDRATION_WORKERS", 4),
			CoverWorkers:     getEnvInt("MANGASHELF_COVER_WORKERS", 4),
		},
		Providers: ProviderConfig{
			KitsuBaseURL: getEnv("MANGASHELF_KITSU_URL", ""),
			AniListURL:   getEnv("MANGASHELF_ANILIST_URL", ""),
			JikanBaseURL: getEnv("MANGASHELF_JIKAN_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
