package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type JWTConfig struct {
	SecretKey string `mapstructure:"secretKey"`
	// AccessTokenTTL of zero issues tokens without an exp claim.
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
}

type OTPConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MailSubject string        `mapstructure:"mailSubject"`
}

type CacheConfig struct {
	// Driver is either "memory" or "redis".
	Driver          string        `mapstructure:"driver"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
	KeyPrefix       string        `mapstructure:"keyPrefix"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port    string `mapstructure:"port"`
			Enabled bool   `mapstructure:"enabled"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
		Redis struct {
			URL string `mapstructure:"url"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort       string          `mapstructure:"HTTPPort"`
		Timeout        time.Duration   `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string        `mapstructure:"allowedOrigins"`
		RateLimit      RateLimitConfig `mapstructure:"rateLimit"`
	} `mapstructure:"server"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	OTP   OTPConfig   `mapstructure:"otp"`
	Cache CacheConfig `mapstructure:"cache"`
	Mail  MailConfig  `mapstructure:"mail"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// JWT_SECRETKEY, MAIL_PASSWORD, REPOSITORIES_POSTGRES_PASSWORD, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secretKey must be set")
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("otp.ttl must be positive, got %s", c.OTP.TTL)
	}
	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Repositories.Redis.URL == "" {
			return fmt.Errorf("cache.driver is redis but repositories.redis.url is empty")
		}
	default:
		return fmt.Errorf("unknown cache.driver %q", c.Cache.Driver)
	}
	return nil
}
