package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/media"
)

const (
	DefaultRatios            = "1x1,2x1,3x1,3x4,4x3,16x9"
	DefaultPlaceholderColors = "#153f5b,#4aa8a0,#e96f47,#f3c14b,#8d5e87"
)

const (
	defaultMaxWidth             = 3200
	defaultJPEGQuality          = 80
	defaultJPEGQualityMin       = 60
	defaultJPEGQualityMax       = 92
	defaultJPEGMaxError         = 3.5
	defaultQualitySearchMaxArea = 1000 * 1000
	defaultMaxSourceBytes       = 50 << 20
	defaultFetchTimeout         = 30 * time.Second
	defaultTaskQueueSize        = 200
	defaultNumWorkers           = 4
)

const (
	TaskQueueMemory = "memory"
	TaskQueueKafka  = "kafka"
)

type Config struct {
	Port         string
	DatabasePath string

	// root for sources, optimized masters and the derivative cache
	ImageRoot string
	// public base URL, used in the fetch user agent
	ImageURL string

	// crop settings
	Ratios      []string
	CacheWidths []int // empty caches every width
	MaxWidth    int

	// quality search
	DefaultJPEGQuality   int
	JPEGQualityMin       int
	JPEGQualityMax       int
	JPEGMaxError         float64
	QualitySearchMaxArea int

	// ingestion
	MaxSourceBytes int64
	FetchTimeout   time.Duration

	// placeholders for unknown ids
	Placeholder       bool
	PlaceholderColors []string

	// admin API
	APIKeyHash     string
	AllowedOrigins []string

	// worker settings
	TaskQueue     string
	TaskQueueSize int
	NumWorkers    int
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroupID  string

	LogLevel  string
	LogFormat string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Warn().Err(err).Str("var", envVar).Str("value", valStr).Int("default", defaultVal).Msg("invalid integer setting, using default")
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Warn().Err(err).Str("var", envVar).Str("value", valStr).Float64("default", defaultVal).Msg("invalid float setting, using default")
		return defaultVal
	}
	return val
}

func getEnvBoolOrDefault(envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Warn().Err(err).Str("var", envVar).Str("value", valStr).Bool("default", defaultVal).Msg("invalid boolean setting, using default")
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Warn().Err(err).Str("var", envVar).Str("value", valStr).Dur("default", defaultVal).Msg("invalid duration setting, using default")
		return defaultVal
	}
	return val
}

// getEnvListOrDefault splits a comma separated variable, dropping empty items
func getEnvListOrDefault(envVar, defaultVal string) []string {
	raw := getEnvOrDefault(envVar, defaultVal)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseIntList(items []string) ([]int, error) {
	out := make([]int, 0, len(items))
	for _, item := range items {
		v, err := strconv.Atoi(item)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid width '%s'", item)
		}
		out = append(out, v)
	}
	return out, nil
}

func LoadConfig() (Config, error) {
	imageRoot := getEnvOrDefault("IMAGE_ROOT", filepath.Join(".", "images"))
	absImageRoot, err := filepath.Abs(imageRoot)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for image root '%s': %w", imageRoot, err)
	}

	cacheWidths, err := parseIntList(getEnvListOrDefault("CACHE_WIDTHS", ""))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CACHE_WIDTHS: %w", err)
	}

	cfg := Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		DatabasePath:         getEnvOrDefault("DATABASE_PATH", "images.db"),
		ImageRoot:            absImageRoot,
		ImageURL:             getEnvOrDefault("IMAGE_URL", "http://localhost:8080/images"),
		Ratios:               getEnvListOrDefault("RATIOS", DefaultRatios),
		CacheWidths:          cacheWidths,
		MaxWidth:             getEnvIntOrDefault("MAX_WIDTH", defaultMaxWidth),
		DefaultJPEGQuality:   getEnvIntOrDefault("DEFAULT_JPEG_QUALITY", defaultJPEGQuality),
		JPEGQualityMin:       getEnvIntOrDefault("JPEG_QUALITY_MIN", defaultJPEGQualityMin),
		JPEGQualityMax:       getEnvIntOrDefault("JPEG_QUALITY_MAX", defaultJPEGQualityMax),
		JPEGMaxError:         getEnvFloatOrDefault("JPEG_MAX_ERROR", defaultJPEGMaxError),
		QualitySearchMaxArea: getEnvIntOrDefault("QUALITY_SEARCH_MAX_AREA", defaultQualitySearchMaxArea),
		MaxSourceBytes:       int64(getEnvIntOrDefault("MAX_SOURCE_BYTES", defaultMaxSourceBytes)),
		FetchTimeout:         getEnvDurationOrDefault("FETCH_TIMEOUT", defaultFetchTimeout),
		Placeholder:          getEnvBoolOrDefault("PLACEHOLDER", false),
		PlaceholderColors:    getEnvListOrDefault("PLACEHOLDER_COLORS", DefaultPlaceholderColors),
		APIKeyHash:           os.Getenv("API_KEY_HASH"),
		AllowedOrigins:       getEnvListOrDefault("ALLOWED_ORIGINS", "http://localhost:5173"),
		TaskQueue:            strings.ToLower(getEnvOrDefault("TASK_QUEUE", TaskQueueMemory)),
		TaskQueueSize:        getEnvIntOrDefault("TASK_QUEUE_SIZE", defaultTaskQueueSize),
		NumWorkers:           getEnvIntOrDefault("NUM_WORKERS", defaultNumWorkers),
		KafkaBrokers:         getEnvListOrDefault("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:           getEnvOrDefault("KAFKA_TOPIC", "image-tasks"),
		KafkaGroupID:         getEnvOrDefault("KAFKA_GROUP_ID", "image-cropper"),
		LogLevel:             strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnvOrDefault("LOG_FORMAT", "json")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the per-variable helpers can't
func (c Config) Validate() error {
	if c.JPEGQualityMin < 1 || c.JPEGQualityMax > 100 || c.JPEGQualityMin >= c.JPEGQualityMax {
		return fmt.Errorf("invalid JPEG quality range [%d, %d]", c.JPEGQualityMin, c.JPEGQualityMax)
	}
	if c.DefaultJPEGQuality < 1 || c.DefaultJPEGQuality > 100 {
		return fmt.Errorf("invalid default JPEG quality %d", c.DefaultJPEGQuality)
	}
	if len(c.Ratios) == 0 {
		return fmt.Errorf("at least one ratio must be configured")
	}
	for _, token := range c.Ratios {
		ratio, err := media.ParseRatio(token)
		if err != nil || ratio.IsOriginal() {
			return fmt.Errorf("invalid ratio '%s' in RATIOS", token)
		}
	}
	for _, w := range c.CacheWidths {
		if w > c.MaxWidth {
			return fmt.Errorf("cache width %d exceeds max width %d", w, c.MaxWidth)
		}
	}
	switch c.TaskQueue {
	case TaskQueueMemory, TaskQueueKafka:
	default:
		return fmt.Errorf("unknown task queue backend '%s'", c.TaskQueue)
	}
	return nil
}

// HasRatio reports whether token is one of the configured crop ratios
func (c Config) HasRatio(token string) bool {
	for _, r := range c.Ratios {
		if r == token {
			return true
		}
	}
	return false
}
