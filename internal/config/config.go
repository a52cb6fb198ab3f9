package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Inference InferenceConfig `yaml:"inference"`
	Index     IndexConfig     `yaml:"index"`
	FaceMatch FaceMatchConfig `yaml:"face_match"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// InferenceConfig points at the machine-learning sidecar. The service is a
// black box: only the model identifiers and the vector width it produces
// matter to this process.
type InferenceConfig struct {
	URL            string        `yaml:"url"`
	Timeout        time.Duration `yaml:"timeout"`
	ClipModel      string        `yaml:"clip_model"`
	FacialModel    string        `yaml:"facial_model"`
	ClassifyModel  string        `yaml:"classify_model"`
	MinFaceScore   float64       `yaml:"min_face_score"`
	MinClassifyTag float64       `yaml:"min_classify_tag"`
}

// IndexConfig holds the embedding index driver and the ANN construction
// parameters. The graph parameters are named config on purpose, not
// constants scattered through query code.
type IndexConfig struct {
	Driver         string `yaml:"driver"` // "postgres" or "memory"
	Dimensions     int    `yaml:"dimensions"`
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
	EfSearch       int    `yaml:"ef_search"`
}

type FaceMatchConfig struct {
	// MaxDistance is the cosine-distance threshold at or below which a
	// detected face is attached to an existing person.
	MaxDistance float64 `yaml:"max_distance"`
	// ThumbnailMargin is the pixel margin added around a face bounding box
	// before cropping the person thumbnail.
	ThumbnailMargin int `yaml:"thumbnail_margin"`
}

type JobsConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	// Workers bounds concurrency per job type; unlisted types fall back
	// to DefaultWorkers.
	DefaultWorkers int            `yaml:"default_workers"`
	Workers        map[string]int `yaml:"workers"`
}

type SearchConfig struct {
	SmartEnabled   bool          `yaml:"smart_enabled"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
	PageSize       int           `yaml:"page_size"`
	MaxResults     int           `yaml:"max_results"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// Default returns a config with all defaults applied and no file read.
// Used by tests and the embedded single-binary mode.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Inference.Timeout == 0 {
		cfg.Inference.Timeout = 30 * time.Second
	}
	if cfg.Inference.ClipModel == "" {
		cfg.Inference.ClipModel = "ViT-B-32__openai"
	}
	if cfg.Inference.FacialModel == "" {
		cfg.Inference.FacialModel = "buffalo_l"
	}
	if cfg.Inference.ClassifyModel == "" {
		cfg.Inference.ClassifyModel = "microsoft/resnet-50"
	}
	if cfg.Inference.MinFaceScore == 0 {
		cfg.Inference.MinFaceScore = 0.7
	}
	if cfg.Inference.MinClassifyTag == 0 {
		cfg.Inference.MinClassifyTag = 0.9
	}
	if cfg.Index.Driver == "" {
		cfg.Index.Driver = "postgres"
	}
	if cfg.Index.Dimensions == 0 {
		cfg.Index.Dimensions = 512
	}
	if cfg.Index.M == 0 {
		cfg.Index.M = 16
	}
	if cfg.Index.EfConstruction == 0 {
		cfg.Index.EfConstruction = 300
	}
	if cfg.Index.EfSearch == 0 {
		cfg.Index.EfSearch = 100
	}
	if cfg.FaceMatch.MaxDistance == 0 {
		cfg.FaceMatch.MaxDistance = 0.6
	}
	if cfg.FaceMatch.ThumbnailMargin == 0 {
		cfg.FaceMatch.ThumbnailMargin = 30
	}
	if cfg.Jobs.MaxAttempts == 0 {
		cfg.Jobs.MaxAttempts = 3
	}
	if cfg.Jobs.BackoffBase == 0 {
		cfg.Jobs.BackoffBase = 5 * time.Second
	}
	if cfg.Jobs.DefaultWorkers == 0 {
		cfg.Jobs.DefaultWorkers = 2
	}
	if cfg.Search.DebounceWindow == 0 {
		cfg.Search.DebounceWindow = 5 * time.Second
	}
	if cfg.Search.PageSize == 0 {
		cfg.Search.PageSize = 1000
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 100
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MV_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MV_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("MV_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("MV_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("MV_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("MV_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("MV_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("MV_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("MV_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("MV_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("MV_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("MV_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("MV_INFERENCE_URL"); v != "" {
		cfg.Inference.URL = v
	}
	if v := os.Getenv("MV_INDEX_DRIVER"); v != "" {
		cfg.Index.Driver = v
	}
	if v := os.Getenv("MV_INDEX_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Dimensions = n
		}
	}
	if v := os.Getenv("MV_FACE_MAX_DISTANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FaceMatch.MaxDistance = f
		}
	}
	if v := os.Getenv("MV_SMART_SEARCH_ENABLED"); v != "" {
		cfg.Search.SmartEnabled = v == "true" || v == "1"
	}
}
