package internal

import (
	"fmt"
	"time"

	"chat-relay/runtime"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	RemoteBaseURL   string        `env:"REMOTE_BASE_URL,default=https://front1.omegle.com/" validate:"required,url"`
	Mode            string        `env:"MODE,default=relay" validate:"oneof=relay passive"`
	Participants    int           `env:"PARTICIPANTS,default=2" validate:"gte=1"`
	PollInterval    time.Duration `env:"POLL_INTERVAL,default=1500ms" validate:"gt=0"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=30s" validate:"gt=0"`
	ListenerTimeout time.Duration `env:"LISTENER_TIMEOUT,default=2s" validate:"gte=0"`
	VerboseTimeouts bool          `env:"VERBOSE_TIMEOUTS,default=false"`

	SpellbookPath  string `env:"SPELLBOOK_PATH" validate:"required_if=WatchSpellbook true"`
	SpellbookName  string `env:"SPELLBOOK_NAME,default=gender-swap"`
	WatchSpellbook bool   `env:"WATCH_SPELLBOOK,default=false"`

	// Empty paths disable the transcript store and the search index.
	BadgerFilepath string `env:"BADGER_FILEPATH"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH"`

	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s" validate:"gt=0"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	Colours           bool          `env:"COLOURS,default=true"`
}

var validate = validator.New()

// LoadConfig reads the optional .env file, then the environment, and validates the result.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// RuntimeOptions maps the configuration onto the orchestrator options.
func (c Config) RuntimeOptions() runtime.Options {
	return runtime.Options{
		Participants:    c.Participants,
		PollInterval:    c.PollInterval,
		ListenerTimeout: c.ListenerTimeout,
		RequestTimeout:  c.RequestTimeout,
		VerboseTimeouts: c.VerboseTimeouts,
	}
}
