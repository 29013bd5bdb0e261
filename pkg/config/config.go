// Package config loads the SuiteTalk client and proxy settings from an
// optional suitetalk.yaml file and SUITETALK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/suitetalk-client/pkg/client"
	"github.com/Sternrassler/suitetalk-client/pkg/ratelimit"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g.
// SUITETALK_NETSUITE_ACCOUNT_ID or SUITETALK_THROTTLING_INTERVAL_SECONDS.
const EnvPrefix = "SUITETALK"

// Config holds all settings.
type Config struct {
	NetSuite   NetSuiteConfig
	Throttling client.ThrottlingOptions
	Network    client.NetworkOptions
	Search     client.SearchOptions
	Redis      RedisConfig
	Log        LogConfig
	Server     ServerConfig
}

// NetSuiteConfig holds the account, its token-based credentials and optional
// endpoint overrides.
type NetSuiteConfig struct {
	AccountID      string
	ConsumerKey    string
	ConsumerSecret string
	TokenID        string
	TokenSecret    string
	BaseURL        string
	SOAPEndpoint   string
	UserAgent      string
}

// RedisConfig holds the response cache settings. An empty Addr disables the
// cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Pretty bool
}

// ServerConfig holds the proxy HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads suitetalk.yaml from the working directory or /etc/suitetalk, if
// present, then applies environment overrides.
//
// Priority (highest to lowest):
// 1. Environment variables with SUITETALK_ prefix
// 2. suitetalk.yaml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("suitetalk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/suitetalk")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return build(v)
}

// LoadFile reads the given config file, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("netsuite.user_agent", client.DefaultUserAgent)

	v.SetDefault("throttling.max_requests_per_interval", ratelimit.DefaultMaxRequestsPerInterval)
	v.SetDefault("throttling.interval_seconds", ratelimit.DefaultIntervalSeconds)
	v.SetDefault("throttling.max_retry_attempts", ratelimit.DefaultMaxQueuedRetryAttempts)

	v.SetDefault("network.request_timeout_ms", client.DefaultRequestTimeoutMs)
	v.SetDefault("network.retry_attempts", client.DefaultRetryAttempts)
	v.SetDefault("network.delay_between_failed_requests_sec", client.DefaultDelayBetweenFailedRequestsSec)
	v.SetDefault("network.delay_fail_request_rate", client.DefaultDelayFailRequestRate)

	v.SetDefault("search.records_page_size", client.DefaultRecordsPageSize)
	v.SetDefault("search.purchase_orders_page_size", client.DefaultPurchaseOrdersPageSize)
	v.SetDefault("search.customers_by_ids_page_size", client.DefaultCustomersByIDsPageSize)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", client.DefaultCacheTTL)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		NetSuite: NetSuiteConfig{
			AccountID:      v.GetString("netsuite.account_id"),
			ConsumerKey:    v.GetString("netsuite.consumer_key"),
			ConsumerSecret: v.GetString("netsuite.consumer_secret"),
			TokenID:        v.GetString("netsuite.token_id"),
			TokenSecret:    v.GetString("netsuite.token_secret"),
			BaseURL:        v.GetString("netsuite.base_url"),
			SOAPEndpoint:   v.GetString("netsuite.soap_endpoint"),
			UserAgent:      v.GetString("netsuite.user_agent"),
		},
		Throttling: client.ThrottlingOptions{
			MaxRequestsPerInterval: v.GetInt("throttling.max_requests_per_interval"),
			IntervalSeconds:        v.GetInt("throttling.interval_seconds"),
			MaxRetryAttempts:       v.GetInt("throttling.max_retry_attempts"),
		},
		Network: client.NetworkOptions{
			RequestTimeoutMs:              v.GetInt("network.request_timeout_ms"),
			RetryAttempts:                 v.GetInt("network.retry_attempts"),
			DelayBetweenFailedRequestsSec: v.GetInt("network.delay_between_failed_requests_sec"),
			DelayFailRequestRate:          v.GetInt("network.delay_fail_request_rate"),
		},
		Search: client.SearchOptions{
			RecordsPageSize:        v.GetInt("search.records_page_size"),
			PurchaseOrdersPageSize: v.GetInt("search.purchase_orders_page_size"),
			CustomersByIDsPageSize: v.GetInt("search.customers_by_ids_page_size"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("redis.cache_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the same way client.New does.
func (c *Config) Validate() error {
	gate := ratelimit.Config{
		MaxRequestsPerInterval: c.Throttling.MaxRequestsPerInterval,
		IntervalSeconds:        c.Throttling.IntervalSeconds,
		MaxQueuedRetryAttempts: c.Throttling.MaxRetryAttempts,
	}
	if err := gate.Validate(); err != nil {
		return fmt.Errorf("throttling: %w", err)
	}
	if c.Network.RetryAttempts < 0 || c.Network.DelayBetweenFailedRequestsSec < 0 || c.Network.DelayFailRequestRate < 0 {
		return fmt.Errorf("network: %w: retry settings must be >= 0", client.ErrInvalidConfig)
	}
	if err := c.ClientConfig().Validate(); err != nil {
		return fmt.Errorf("netsuite: %w", err)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server: port is required")
	}
	return nil
}

// ClientConfig returns the client configuration. The caller adds the Redis
// client and logger.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(client.Credentials{
		AccountID:      c.NetSuite.AccountID,
		ConsumerKey:    c.NetSuite.ConsumerKey,
		ConsumerSecret: c.NetSuite.ConsumerSecret,
		TokenID:        c.NetSuite.TokenID,
		TokenSecret:    c.NetSuite.TokenSecret,
	})
	cfg.Throttling = c.Throttling
	cfg.Network = c.Network
	cfg.Search = c.Search
	cfg.BaseURL = c.NetSuite.BaseURL
	cfg.SOAPEndpoint = c.NetSuite.SOAPEndpoint
	cfg.UserAgent = c.NetSuite.UserAgent
	cfg.CacheTTL = c.Redis.CacheTTL
	return cfg
}
