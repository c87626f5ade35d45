package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config regroupe tous les réglages du service.
// Ordre de priorité : variables d'environnement > fichier YAML > valeurs par défaut.
type Config struct {
	Port        string   `yaml:"port"`
	FrontendURL string   `yaml:"frontend_url"`
	Origins     []string `yaml:"origins"`
	DatabaseURL string   `yaml:"database_url"`
	JWTSecret   string   `yaml:"-"`
	RateLimit   int      `yaml:"rate_limit"`

	Stats  StatsConfig  `yaml:"stats"`
	Export ExportConfig `yaml:"export"`
}

type StatsConfig struct {
	APIURL      string        `yaml:"api_url"`
	Timeout     time.Duration `yaml:"timeout"`
	StartYear   int           `yaml:"start_year"`
	FetchPolicy string        `yaml:"fetch_policy"`
	Concurrency int           `yaml:"concurrency"`
}

// ExportConfig tunes the PDF raster blocks. Scale and quality trade pixel
// fidelity for file size.
type ExportConfig struct {
	ImageScale  float64 `yaml:"image_scale"`
	JPEGQuality int     `yaml:"jpeg_quality"`
	Location    string  `yaml:"location"`
}

const (
	FetchSequential = "sequential"
	FetchParallel   = "parallel"
)

func Default() *Config {
	return &Config{
		Port:        "8080",
		FrontendURL: "http://localhost:3000",
		RateLimit:   100,
		Stats: StatsConfig{
			APIURL:      "http://localhost:5000/api",
			Timeout:     30 * time.Second,
			StartYear:   2023,
			FetchPolicy: FetchSequential,
			Concurrency: 4,
		},
		Export: ExportConfig{
			ImageScale:  1.3,
			JPEGQuality: 70,
			Location:    "Europe/Paris",
		},
	}
}

// Load lit le .env, le fichier CONFIG_FILE éventuel puis l'environnement.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.FrontendURL, "FRONTEND_URL")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.Stats.APIURL, "STATS_API_URL")
	setString(&c.Stats.FetchPolicy, "FETCH_POLICY")
	setString(&c.Export.Location, "EXPORT_TIMEZONE")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Origins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Origins = append(c.Origins, o)
			}
		}
	}

	if v := os.Getenv("STATS_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STATS_API_TIMEOUT: %w", err)
		}
		c.Stats.Timeout = d
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_LIMIT", &c.RateLimit},
		{"STATS_START_YEAR", &c.Stats.StartYear},
		{"FETCH_CONCURRENCY", &c.Stats.Concurrency},
		{"PDF_JPEG_QUALITY", &c.Export.JPEGQuality},
	}
	for _, it := range ints {
		if v := os.Getenv(it.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", it.key, err)
			}
			*it.dst = n
		}
	}

	if v := os.Getenv("PDF_IMAGE_SCALE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid PDF_IMAGE_SCALE: %w", err)
		}
		c.Export.ImageScale = f
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate vérifie la cohérence des réglages
func (c *Config) Validate() error {
	if c.Stats.APIURL == "" {
		return fmt.Errorf("STATS_API_URL is required")
	}
	switch c.Stats.FetchPolicy {
	case FetchSequential, FetchParallel:
	default:
		return fmt.Errorf("unknown fetch policy %q (expected %s or %s)", c.Stats.FetchPolicy, FetchSequential, FetchParallel)
	}
	if next := time.Now().Year() + 1; c.Stats.StartYear < 1 || c.Stats.StartYear > next {
		return fmt.Errorf("STATS_START_YEAR must be between 1 and %d, got %d", next, c.Stats.StartYear)
	}
	if c.Stats.Concurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be >= 1")
	}
	if c.Export.ImageScale < 1.2 || c.Export.ImageScale > 1.5 {
		return fmt.Errorf("PDF_IMAGE_SCALE must be between 1.2 and 1.5, got %.2f", c.Export.ImageScale)
	}
	if c.Export.JPEGQuality < 60 || c.Export.JPEGQuality > 75 {
		return fmt.Errorf("PDF_JPEG_QUALITY must be between 60 and 75, got %d", c.Export.JPEGQuality)
	}
	if _, err := time.LoadLocation(c.Export.Location); err != nil {
		return fmt.Errorf("invalid EXPORT_TIMEZONE: %w", err)
	}
	return nil
}

// AllowedOrigins retourne les origines CORS, FRONTEND_URL en tête
func (c *Config) AllowedOrigins() []string {
	origins := []string{c.FrontendURL}
	for _, o := range c.Origins {
		if o != c.FrontendURL {
			origins = append(origins, o)
		}
	}
	return origins
}
