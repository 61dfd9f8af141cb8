// Package config loads the service configuration from YAML and
// validates it against an embedded CUE schema.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the full service configuration. Zero-value fields are
// filled from defaults before validation.
type Config struct {
	// Currency is the symbol prefixed to rendered prices.
	Currency string `yaml:"currency"`
	// Tariff holds the per-delivery-type prices in whole units.
	Tariff TariffConfig `yaml:"tariff"`
	// CachePath is the SQLite fallback cache location.
	CachePath string `yaml:"cachePath"`
	// PostgresDSN selects the Postgres remote store. Empty means the
	// in-memory backend, which is only useful for development.
	PostgresDSN string `yaml:"postgresDSN"`
	// ListenAddr is the HTTP bind address for the serve command.
	ListenAddr string `yaml:"listenAddr"`
	// Milestone is the order count that earns a free delivery.
	Milestone int `yaml:"milestone"`
	// Promo configures generated promo codes.
	Promo PromoConfig `yaml:"promo"`
	// AckDelay is the pause before an order is marked Completed,
	// in time.ParseDuration syntax.
	AckDelay string `yaml:"ackDelay"`
}

type TariffConfig struct {
	Normal  int `yaml:"normal"`
	Express int `yaml:"express"`
}

type PromoConfig struct {
	Alphabet string `yaml:"alphabet"`
	Length   int    `yaml:"length"`
}

// Default returns the deployed configuration values.
func Default() Config {
	return Config{
		Currency:   "₹",
		Tariff:     TariffConfig{Normal: 450, Express: 600},
		CachePath:  "tanker.db",
		ListenAddr: ":8080",
		Milestone:  10,
		Promo: PromoConfig{
			Alphabet: "ABCDEFGHJKLMNPQRSTUVWXYZ23456789",
			Length:   6,
		},
		AckDelay: "2s",
	}
}

// Load reads the YAML file at path, applies defaults for omitted
// fields, and validates the result. An empty path returns the
// validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate unifies the configuration with the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	unified := schema.Unify(ctx.Encode(encodable(c)))
	if err := unified.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// The schema constrains the duration format; parse it too so a
	// typo surfaces here rather than at store construction.
	if _, err := time.ParseDuration(c.AckDelay); err != nil {
		return fmt.Errorf("invalid config: ackDelay: %w", err)
	}
	return nil
}

// ParsedAckDelay returns the acknowledgment pause as a duration.
// Validate must have succeeded.
func (c Config) ParsedAckDelay() time.Duration {
	d, err := time.ParseDuration(c.AckDelay)
	if err != nil {
		panic(fmt.Sprintf("config: ackDelay not validated: %v", err))
	}
	return d
}

// encodable mirrors Config with the field names the schema uses.
// cue's Encode follows json tags, and Config only carries yaml ones.
func encodable(c Config) map[string]any {
	return map[string]any{
		"currency": c.Currency,
		"tariff": map[string]any{
			"normal":  c.Tariff.Normal,
			"express": c.Tariff.Express,
		},
		"cachePath":   c.CachePath,
		"postgresDSN": c.PostgresDSN,
		"listenAddr":  c.ListenAddr,
		"milestone":   c.Milestone,
		"promo": map[string]any{
			"alphabet": c.Promo.Alphabet,
			"length":   c.Promo.Length,
		},
		"ackDelay": c.AckDelay,
	}
}
