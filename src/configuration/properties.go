package configuration

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type (
	Properties struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
		Env      string `env:"APP_ENV" envDefault:"development"`

		S3       S3Properties         `envPrefix:"S3_"`
		Server   HttpServerProperties `envPrefix:"HTTP_"`
		Store    StoreProperties      `envPrefix:"STORE_"`
		MLServer MLServerProperties   `envPrefix:"ML_"`
		Client   ClientProperties     `envPrefix:"CLIENT_"`
	}

	HttpServerProperties struct {
		Port           string        `env:"PORT" envDefault:"9000"`
		ReadTimeout    time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
		MaxUploadBytes int64         `env:"MAX_UPLOAD" envDefault:"10485760"`
		AllowOrigins   []string      `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
		Debug          bool          `env:"DEBUG" envDefault:"false"`
	}

	S3Properties struct {
		Endpoint   string `env:"ENDPOINT" envDefault:"s3.amazonaws.com"`
		Region     string `env:"REGION" envDefault:"us-east-1"`
		AccessKey  string `env:"ACCESS_KEY"`
		SecretKey  string `env:"SECRET_KEY"`
		Bucket     string `env:"BUCKET" envDefault:"album"`
		BasePrefix string `env:"BASE_PREFIX" envDefault:"album_project/photos"`
		UseSSL     bool   `env:"USE_SSL" envDefault:"true"`
	}

	StoreProperties struct {
		PhotosPath string `env:"PHOTOS_PATH" envDefault:"data/photos.json"`
		DevicePath string `env:"DEVICE_PATH" envDefault:"data/device.db"`
	}

	MLServerProperties struct {
		Host    string        `env:"HOST"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
	}

	ClientProperties struct {
		APIBaseURL      string        `env:"API_BASE_URL" envDefault:"http://localhost:9000/api"`
		LibraryDir      string        `env:"LIBRARY_DIR" envDefault:"."`
		Timeout         time.Duration `env:"TIMEOUT" envDefault:"15s"`
		BreakerFailures uint32        `env:"BREAKER_FAILURES" envDefault:"3"`
		BreakerTimeout  time.Duration `env:"BREAKER_TIMEOUT" envDefault:"60s"`
	}
)

func (p *Properties) Development() bool {
	return p.Env == "development"
}

func Load() (*Properties, error) {
	config := &Properties{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	return config, nil
}

func ReadProperties() *Properties {
	config, err := Load()
	if err != nil {
		panic(err)
	}
	return config
}
