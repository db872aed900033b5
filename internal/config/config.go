// Package config loads process configuration from config/config.yml, an optional
// .env file and PROJECTSVC_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config/config.yml"
	envPrefix         = "PROJECTSVC"
	insecureSecret    = "change-me"
)

// PolicyRule is one RBAC seed entry: role may call method on path
type PolicyRule struct {
	Role   string `yaml:"role"`
	Path   string `yaml:"path"`
	Method string `yaml:"method"`
}

type AppConfig struct {
	Port    int    `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`
	Env     string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Issuer     string `mapstructure:"issuer"`
	AccessTTL  string `mapstructure:"access_ttl"`
	RefreshTTL string `mapstructure:"refresh_ttl"`
}

type SessionConfig struct {
	MaxTTL            string `mapstructure:"max_ttl"`
	SweepInterval     string `mapstructure:"sweep_interval"`
	BindToAccessToken bool   `mapstructure:"bind_to_access_token"`
}

type BcryptConfig struct {
	Cost int `mapstructure:"cost"`
}

type CasbinConfig struct {
	ModelPath  string `mapstructure:"model_path"`
	PolicyPath string `mapstructure:"policy_path"`
}

type ConfigFile struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Session  SessionConfig  `mapstructure:"session"`
	Bcrypt   BcryptConfig   `mapstructure:"bcrypt"`
	Casbin   CasbinConfig   `mapstructure:"casbin"`
}

// Config is the immutable, validated process configuration
type Config struct {
	Port                 string
	GinMode              string
	Env                  string
	LogLevel             string
	LogFormat            string
	DSN                  string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	JWTSecret            string
	JWTIssuer            string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	SessionMaxTTL        time.Duration
	SessionSweepInterval time.Duration
	// SessionBindToAccess caps a session's expiry at the access token's expiry
	SessionBindToAccess bool
	BcryptCost          int
	CasbinModelPath     string
	Policies            []PolicyRule
}

// IsProduction reports whether the service runs with app.env=production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads config/config.yml relative to the working directory
func Load() (*Config, error) {
	return LoadFrom(defaultConfigPath)
}

// LoadFrom reads the YAML file at path (a missing file is allowed), applies
// .env and environment overrides and validates the result.
func LoadFrom(path string) (*Config, error) {
	// .env only fills variables that are not already set
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var file ConfigFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}

	cfg, err := build(&file)
	if err != nil {
		return nil, err
	}

	if file.Casbin.PolicyPath != "" {
		policies, err := loadPolicies(file.Casbin.PolicyPath)
		if err != nil {
			return nil, err
		}
		cfg.Policies = policies
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.gin_mode", "release")
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "projectsvc")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("session.max_ttl", "720h")
	v.SetDefault("session.sweep_interval", "10m")
	v.SetDefault("session.bind_to_access_token", false)
	v.SetDefault("bcrypt.cost", 12)
	v.SetDefault("casbin.model_path", "config/rbac_model.conf")
	v.SetDefault("casbin.policy_path", "")
}

func build(file *ConfigFile) (*Config, error) {
	accTTL, err := parsePositiveDuration("jwt.access_ttl", file.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}
	refTTL, err := parsePositiveDuration("jwt.refresh_ttl", file.JWT.RefreshTTL)
	if err != nil {
		return nil, err
	}
	maxTTL, err := parsePositiveDuration("session.max_ttl", file.Session.MaxTTL)
	if err != nil {
		return nil, err
	}
	sweep, err := parsePositiveDuration("session.sweep_interval", file.Session.SweepInterval)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 fmt.Sprintf("%d", file.App.Port),
		GinMode:              file.App.GinMode,
		Env:                  file.App.Env,
		LogLevel:             file.Log.Level,
		LogFormat:            file.Log.Format,
		DSN:                  file.Database.DSN,
		RedisAddr:            file.Redis.Addr,
		RedisPassword:        file.Redis.Password,
		RedisDB:              file.Redis.DB,
		JWTSecret:            file.JWT.Secret,
		JWTIssuer:            file.JWT.Issuer,
		AccessTTL:            accTTL,
		RefreshTTL:           refTTL,
		SessionMaxTTL:        maxTTL,
		SessionSweepInterval: sweep,
		SessionBindToAccess:  file.Session.BindToAccessToken,
		BcryptCost:           file.Bcrypt.Cost,
		CasbinModelPath:      file.Casbin.ModelPath,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: jwt.secret must be set")
	}
	if c.IsProduction() && c.JWTSecret == insecureSecret {
		return errors.New("config: jwt.secret must be changed in production")
	}
	if c.JWTIssuer == "" {
		return errors.New("config: jwt.issuer must be set")
	}
	if c.RefreshTTL < c.AccessTTL {
		return errors.New("config: jwt.refresh_ttl must not be shorter than jwt.access_ttl")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: bcrypt.cost must be between 4 and 31")
	}
	if c.Port == "0" {
		return errors.New("config: app.port must be set")
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func loadPolicies(path string) ([]PolicyRule, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read policy file: %w", err)
	}

	var doc struct {
		Policies []PolicyRule `yaml:"policies"`
	}
	if err := yaml.Unmarshal(bytes, &doc); err != nil {
		return nil, fmt.Errorf("could not parse policy yaml: %w", err)
	}

	for i, p := range doc.Policies {
		if p.Role == "" || p.Path == "" || p.Method == "" {
			return nil, fmt.Errorf("policy %d: role, path and method are required", i)
		}
	}
	return doc.Policies, nil
}
