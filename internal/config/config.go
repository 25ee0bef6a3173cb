package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

type StorageConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	BucketUploads  string
	BucketHeatmaps string
	UseSSL         bool
	Region         string
}

type SecurityConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
}

// DetectionConfig describes how the external Python detectors are invoked.
type DetectionConfig struct {
	PythonBin        string
	OptimizedScript  string
	AdvancedScript   string
	BasicScript      string
	GradCAMScript    string
	StrategyTimeout  time.Duration
	HeatmapThreshold float64
}

type PathsConfig struct {
	UploadsDir  string
	HeatmapsDir string
	TempDir     string
}

type RetentionConfig struct {
	HeatmapMaxAge time.Duration
	QuotaMaxAge   time.Duration
}

type WorkerConfig struct {
	ClaimInterval time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Detection        DetectionConfig
	Paths            PathsConfig
	Retention        RetentionConfig
	Worker           WorkerConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("DEEPSIGHT")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "30s")
	v.SetDefault("http.writetimeout", "120s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "deepsight:tasks")
	v.SetDefault("redis.group", "deepsight-workers")
	v.SetDefault("redis.consumer", "worker-1")

	v.SetDefault("storage.bucketuploads", "deepsight-uploads")
	v.SetDefault("storage.bucketheatmaps", "deepsight-heatmaps")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtttl", "24h")

	v.SetDefault("detection.pythonbin", "python3")
	v.SetDefault("detection.optimizedscript", "scripts/optimizedDetector.py")
	v.SetDefault("detection.advancedscript", "scripts/deepfakeDetector.py")
	v.SetDefault("detection.basicscript", "scripts/basicDetector.py")
	v.SetDefault("detection.gradcamscript", "scripts/gradcam_service.py")
	v.SetDefault("detection.strategytimeout", "60s")
	v.SetDefault("detection.heatmapthreshold", 40.0)

	v.SetDefault("paths.uploadsdir", "data/uploads")
	v.SetDefault("paths.heatmapsdir", "data/heatmaps")
	v.SetDefault("paths.tempdir", "data/tmp")

	v.SetDefault("retention.heatmapmaxage", "168h") // 7 days
	v.SetDefault("retention.quotamaxage", "720h")   // 30 days

	v.SetDefault("worker.claiminterval", "60s")
}
