// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/replicate"
	"github.com/jeranaias/replichat/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the replichat configuration file.
type Config struct {
	Replicate  ReplicateConfig   `toml:"replicate" json:"replicate"`
	Generation GenerationSection `toml:"generation" json:"generation"`
	UI         UIConfig          `toml:"ui" json:"ui"`
}

// ReplicateConfig configures the API client.
type ReplicateConfig struct {
	// APIToken is the Replicate API token ("r8_...")
	APIToken string `toml:"api_token" json:"api_token"`

	// BaseURL overrides the API base URL
	BaseURL string `toml:"base_url" json:"base_url"`

	// RateLimit caps predictions per second (0 = unlimited)
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`

	// RateBurst is the burst size for RateLimit
	RateBurst int `toml:"rate_burst" json:"rate_burst"`

	// Debug logs API requests
	Debug bool `toml:"debug" json:"debug"`
}

// GenerationSection holds the starting model and parameters for new sessions.
type GenerationSection struct {
	Model         string  `toml:"model" json:"model"`
	Temperature   float64 `toml:"temperature" json:"temperature"`
	TopP          float64 `toml:"top_p" json:"top_p"`
	MaxTokens     int     `toml:"max_tokens" json:"max_tokens"`
	SystemPrompt  string  `toml:"system_prompt" json:"system_prompt"`
	PartialPolicy string  `toml:"partial_policy" json:"partial_policy"`
}

// Params returns the generation parameters as a model config.
func (g GenerationSection) Params() model.GenerationConfig {
	return model.GenerationConfig{
		Temperature:  g.Temperature,
		TopP:         g.TopP,
		MaxTokens:    g.MaxTokens,
		SystemPrompt: g.SystemPrompt,
	}
}

// UIConfig holds front-end options.
type UIConfig struct {
	// Theme is "auto", "dark", or "light"
	Theme string `toml:"theme" json:"theme"`

	// Markdown renders assistant replies as markdown
	Markdown bool `toml:"markdown" json:"markdown"`

	// ShowHints shows parameter hints in the sidebar
	ShowHints bool `toml:"show_hints" json:"show_hints"`

	// WordWrap is the wrap width for non-TUI output (0 = terminal width)
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// Valid values.
var (
	validThemes          = []string{"auto", "dark", "light"}
	validPartialPolicies = []string{"discard", "keep"}
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Replicate: ReplicateConfig{
			BaseURL:   replicate.DefaultBaseURL,
			RateLimit: 0,
			RateBurst: 1,
		},
		Generation: GenerationSection{
			Model:         model.DefaultModel().ID,
			Temperature:   model.DefaultTemperature,
			TopP:          model.DefaultTopP,
			MaxTokens:     model.DefaultMaxTokens,
			SystemPrompt:  model.DefaultSystemPrompt,
			PartialPolicy: "discard",
		},
		UI: UIConfig{
			Theme:     "auto",
			Markdown:  true,
			ShowHints: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the replichat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".replichat"), nil
}

// Path returns the config file path, honoring REPLICHAT_CONFIG.
func Path() (string, error) {
	if p := os.Getenv("REPLICHAT_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600; it holds the token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD AND SAVE
// =============================================================================

// Load loads the config file at Path, then applies environment overrides and
// validates. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the config file at path. See Load.
func LoadFrom(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadFile decodes the file at path over the defaults, with no environment
// overrides and no validation. This is the form the config command edits
// and saves back.
func ReadFile(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}
	cfg.SetDefaults()
	return cfg, nil
}

// Save writes cfg to Path.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg to path atomically with 0600 permissions.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# replichat configuration file")
	fmt.Fprintln(&buf, "# Generated by replichat - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and returns all problems at once.
// MaxTokens below the chosen model's minimum is accepted here; sessions
// raise it on load.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if c.Replicate.APIToken != "" && !replicate.ValidateToken(c.Replicate.APIToken) {
		add("replicate.api_token", fmt.Sprintf("must start with %q and be %d characters", replicate.TokenPrefix, replicate.TokenLength))
	}
	if u, err := url.Parse(c.Replicate.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("replicate.base_url", fmt.Sprintf("invalid URL %q", c.Replicate.BaseURL))
	}
	if c.Replicate.RateLimit < 0 {
		add("replicate.rate_limit", "must not be negative")
	}
	if c.Replicate.RateBurst < 0 {
		add("replicate.rate_burst", "must not be negative")
	}

	g := c.Generation
	if _, ok := model.LookupModel(g.Model); !ok {
		add("generation.model", fmt.Sprintf("unknown model %q (known: %s)", g.Model, strings.Join(model.ModelIDs(), ", ")))
	}
	if g.Temperature < model.MinTemperature || g.Temperature > model.MaxTemperature {
		add("generation.temperature", fmt.Sprintf("must be between %g and %g", model.MinTemperature, model.MaxTemperature))
	}
	if g.TopP < model.MinTopP || g.TopP > model.MaxTopP {
		add("generation.top_p", fmt.Sprintf("must be between %g and %g", model.MinTopP, model.MaxTopP))
	}
	if g.MaxTokens < 1 || g.MaxTokens > model.MaxMaxTokens {
		add("generation.max_tokens", fmt.Sprintf("must be between 1 and %d", model.MaxMaxTokens))
	}
	if strings.TrimSpace(g.SystemPrompt) == "" {
		add("generation.system_prompt", "must not be blank")
	}
	if !contains(validPartialPolicies, g.PartialPolicy) {
		add("generation.partial_policy", fmt.Sprintf("must be one of %s", strings.Join(validPartialPolicies, ", ")))
	}

	if !contains(validThemes, c.UI.Theme) {
		add("ui.theme", fmt.Sprintf("must be one of %s", strings.Join(validThemes, ", ")))
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty fields that would otherwise fail validation.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Replicate.BaseURL == "" {
		c.Replicate.BaseURL = d.Replicate.BaseURL
	}
	if c.Generation.Model == "" {
		c.Generation.Model = d.Generation.Model
	}
	if c.Generation.PartialPolicy == "" {
		c.Generation.PartialPolicy = d.Generation.PartialPolicy
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	c.Generation.PartialPolicy = strings.ToLower(strings.TrimSpace(c.Generation.PartialPolicy))
	c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies REPLICATE_API_TOKEN and REPLICHAT_* variables.
func (c *Config) ApplyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")); v != "" {
		c.Replicate.APIToken = v
	}
	if v := os.Getenv("REPLICHAT_BASE_URL"); v != "" {
		c.Replicate.BaseURL = v
	}
	if v := os.Getenv("REPLICHAT_MODEL"); v != "" {
		c.Generation.Model = v
	}
	if v := os.Getenv("REPLICHAT_DEBUG"); v != "" {
		c.Replicate.Debug = v == "1" || strings.EqualFold(v, "true")
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dotted key, e.g. "generation.temperature".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dotted key. String values are converted to the
// field's type. The result is not validated; call Validate.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown key: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("key %q is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("key '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds a struct field by its toml tag.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(t.Field(i).Tag.Get("toml"), name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.TrimSpace(strVal))
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable key in dotted form, in declaration order.
func Keys() []string {
	var keys []string
	ct := reflect.TypeOf(Config{})
	for i := 0; i < ct.NumField(); i++ {
		section := ct.Field(i)
		st := section.Type
		for j := 0; j < st.NumField(); j++ {
			keys = append(keys, section.Tag.Get("toml")+"."+st.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// IsSecretKey reports whether a key holds a credential and must be masked
// when displayed.
func IsSecretKey(key string) bool {
	return strings.EqualFold(key, "replicate.api_token")
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// Load errors fall back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal replaces the global configuration.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
