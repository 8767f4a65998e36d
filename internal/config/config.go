package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Cycle    CycleConfig    `mapstructure:"cycle"`
	Routines RoutinesConfig `mapstructure:"routines"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release, test
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // mongo | memory
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// CycleConfig drives the weekly reset of routine completions.
type CycleConfig struct {
	ResetEnabled  bool   `mapstructure:"reset_enabled"`
	ResetSchedule string `mapstructure:"reset_schedule"` // cron spec with seconds, UTC
}

type RoutinesConfig struct {
	ActivationPolicy string `mapstructure:"activation_policy"` // parallel | exclusive
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// LoadConfig reads configuration from an optional .env file, config.yaml in
// path, and environment variables, in increasing precedence.
func LoadConfig(path string) (config Config, err error) {
	// .env is optional; only a malformed file is an error.
	if err = godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	// server.address -> SERVER_ADDRESS
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return config, err
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, err
	}
	return config, config.Validate()
}

func setDefaults(v *viper.Viper) {
	// every key needs a default so AutomaticEnv can override it on Unmarshal
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "0s") // SSE streams stay open
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "fitness_coach")
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("cycle.reset_enabled", true)
	v.SetDefault("cycle.reset_schedule", "0 0 0 * * 1") // Monday 00:00 UTC
	v.SetDefault("routines.activation_policy", "parallel")
	v.SetDefault("log.development", false)
}

// Validate reports configuration the server cannot start with.
func (c Config) Validate() error {
	var problems []error
	if c.JWT.Secret == "" {
		problems = append(problems, errors.New("jwt.secret is required"))
	}
	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.URI == "" || c.Database.Name == "" {
			problems = append(problems, errors.New("database.uri and database.name are required for the mongo driver"))
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	switch c.Routines.ActivationPolicy {
	case "parallel", "exclusive":
	default:
		problems = append(problems, fmt.Errorf("unknown routines.activation_policy %q", c.Routines.ActivationPolicy))
	}
	if c.S3.Enabled && c.S3.BucketName == "" {
		problems = append(problems, errors.New("s3.bucket_name is required when s3.enabled is set"))
	}
	if c.Cycle.ResetEnabled && c.Cycle.ResetSchedule == "" {
		problems = append(problems, errors.New("cycle.reset_schedule is required when cycle.reset_enabled is set"))
	}
	return errors.Join(problems...)
}
