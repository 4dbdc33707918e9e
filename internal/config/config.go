package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"nludevops/internal/luis"
)

const envPrefix = "NLU"

type LUISConfig struct {
	Endpoint            string   `mapstructure:"endpoint"`
	AppID               string   `mapstructure:"app_id"`
	SlotName            string   `mapstructure:"slot_name"`
	VersionID           string   `mapstructure:"version_id"`
	EndpointKey         string   `mapstructure:"endpoint_key"`
	TimeoutSeconds      int      `mapstructure:"timeout_seconds"`
	PrebuiltEntityTypes []string `mapstructure:"prebuilt_entity_types"`
}

type MQTTConfig struct {
	BrokerURL   string `mapstructure:"broker_url"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type Config struct {
	LUIS        LUISConfig `mapstructure:"luis"`
	DBDSN       string     `mapstructure:"db_dsn"`
	MQTT        MQTTConfig `mapstructure:"mqtt"`
	HTTPAddr    string     `mapstructure:"http_addr"`
	RunsTTLSecs int        `mapstructure:"runs_ttl_seconds"`
	Debug       bool       `mapstructure:"debug"`

	prebuilt map[string]string
}

// LUISSettings carries the prebuilt entity types parsed by Load; a Config
// built any other way has none.
func (c Config) LUISSettings() luis.Settings {
	prebuilt := make(map[string]string, len(c.prebuilt))
	for domainName, builtinName := range c.prebuilt {
		prebuilt[domainName] = builtinName
	}
	return luis.Settings{
		Endpoint:            c.LUIS.Endpoint,
		AppID:               c.LUIS.AppID,
		SlotName:            c.LUIS.SlotName,
		VersionID:           c.LUIS.VersionID,
		EndpointKey:         c.LUIS.EndpointKey,
		PrebuiltEntityTypes: prebuilt,
	}
}

// ParsePrebuiltEntityTypes reads "domainName=builtinName" pairs. Pairs are kept
// as a list because viper folds map keys to lower case.
func ParsePrebuiltEntityTypes(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		domainName, builtinName, ok := strings.Cut(pair, "=")
		domainName = strings.TrimSpace(domainName)
		builtinName = strings.TrimSpace(builtinName)
		if !ok || domainName == "" || builtinName == "" {
			return nil, fmt.Errorf("invalid prebuilt entity type %q, want domainName=builtinName", pair)
		}
		if _, dup := out[domainName]; dup {
			return nil, fmt.Errorf("prebuilt entity type %q is configured twice", domainName)
		}
		out[domainName] = builtinName
	}
	return out, nil
}

func (c Config) LUISTimeout() time.Duration {
	return time.Duration(c.LUIS.TimeoutSeconds) * time.Second
}

func (c Config) RunsTTL() time.Duration {
	return time.Duration(c.RunsTTLSecs) * time.Second
}

// New returns a viper instance with defaults and NLU_* environment binding,
// e.g. NLU_LUIS_APP_ID for luis.app_id.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("luis.endpoint", "")
	v.SetDefault("luis.app_id", "")
	v.SetDefault("luis.slot_name", "production")
	v.SetDefault("luis.version_id", "")
	v.SetDefault("luis.endpoint_key", "")
	v.SetDefault("luis.timeout_seconds", 10)
	v.SetDefault("luis.prebuilt_entity_types", []string{})
	v.SetDefault("db_dsn", "")
	v.SetDefault("mqtt.broker_url", "")
	v.SetDefault("mqtt.client_id", "nlu-devops")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "nlu")
	v.SetDefault("http_addr", ":9020")
	v.SetDefault("runs_ttl_seconds", 3600)
	v.SetDefault("debug", false)
	return v
}

// Load reads an optional settings file (JSON or YAML by extension) and applies
// environment overrides.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read settings %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode settings: %w", err)
	}

	if cfg.LUIS.TimeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("luis.timeout_seconds must be positive")
	}
	if cfg.RunsTTLSecs < 0 {
		return Config{}, fmt.Errorf("runs_ttl_seconds must not be negative")
	}
	prebuilt, err := ParsePrebuiltEntityTypes(cfg.LUIS.PrebuiltEntityTypes)
	if err != nil {
		return Config{}, fmt.Errorf("luis.prebuilt_entity_types: %w", err)
	}
	if _, err := luis.NewTypeMapper(prebuilt); err != nil {
		return Config{}, fmt.Errorf("luis.prebuilt_entity_types: %w", err)
	}
	cfg.prebuilt = prebuilt
	return cfg, nil
}

// RequireLUIS checks the settings needed to reach the prediction endpoint.
func (c Config) RequireLUIS() error {
	if c.LUIS.Endpoint == "" {
		return fmt.Errorf("luis.endpoint is required (NLU_LUIS_ENDPOINT)")
	}
	if c.LUIS.AppID == "" {
		return fmt.Errorf("luis.app_id is required (NLU_LUIS_APP_ID)")
	}
	return nil
}

// Save writes the effective settings so a later run can reuse them.
func Save(v *viper.Viper, path string) error {
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write settings %q: %w", path, err)
	}
	return nil
}
