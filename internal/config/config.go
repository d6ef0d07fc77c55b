package config

import (
	"os"
	"time"

	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every environment variable read by DefaultClientConfigFromEnv.
const EnvPrefix = "HORDE"

type Logger struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
}

type Client struct {
	FacilitatorURL   string
	FacilitatorToken string
	// ValidatorHotkey routes jobs to one validator; empty lets the facilitator choose.
	ValidatorHotkey string
	// JobQueue groups jobs of one process so they can be resumed after a restart.
	JobQueue       string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	// KeyFile is a TOML wallet file, see LoadKeyFile.
	KeyFile string
	// RedisAddr switches the pending job store from memory to redis.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Logger        Logger
}

// DefaultClientConfigFromEnv reads an optional .env file and HORDE_* environment variables.
func DefaultClientConfigFromEnv() (Client, error) {
	if err := gotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return Client{}, errors.Wrap(err, "failed to load .env")
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("facilitator_url", horde.DefaultFacilitatorURL)
	v.SetDefault("facilitator_token", "")
	v.SetDefault("validator_hotkey", "")
	v.SetDefault("job_queue", "")
	v.SetDefault("poll_interval", horde.DefaultPollInterval)
	v.SetDefault("request_timeout", horde.DefaultRequestTimeout)
	v.SetDefault("key_file", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", zerolog.InfoLevel.String())
	v.SetDefault("log_pretty", true)

	level, err := zerolog.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return Client{}, errors.Wrapf(err, "invalid %s_LOG_LEVEL", EnvPrefix)
	}

	cfg := Client{
		FacilitatorURL:   v.GetString("facilitator_url"),
		FacilitatorToken: v.GetString("facilitator_token"),
		ValidatorHotkey:  v.GetString("validator_hotkey"),
		JobQueue:         v.GetString("job_queue"),
		PollInterval:     v.GetDuration("poll_interval"),
		RequestTimeout:   v.GetDuration("request_timeout"),
		KeyFile:          v.GetString("key_file"),
		RedisAddr:        v.GetString("redis_addr"),
		RedisPassword:    v.GetString("redis_password"),
		RedisDB:          v.GetInt("redis_db"),
		Logger: Logger{
			Level:              level,
			PrettyPrintConsole: v.GetBool("log_pretty"),
		},
	}

	if cfg.PollInterval <= 0 {
		return Client{}, errors.Errorf("%s_POLL_INTERVAL must be positive, got %s", EnvPrefix, cfg.PollInterval)
	}
	if cfg.RequestTimeout <= 0 {
		return Client{}, errors.Errorf("%s_REQUEST_TIMEOUT must be positive, got %s", EnvPrefix, cfg.RequestTimeout)
	}

	return cfg, nil
}
