package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/suitetalk-client/pkg/oauth"
	"github.com/Sternrassler/suitetalk-client/pkg/ratelimit"
	"github.com/Sternrassler/suitetalk-client/pkg/soap"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Credentials are the token-based authentication secrets of an account.
type Credentials = oauth.Credentials

// ThrottlingOptions configure the admission gate.
type ThrottlingOptions struct {
	MaxRequestsPerInterval int
	IntervalSeconds        int

	// MaxRetryAttempts bounds how many intervals ahead a queued caller may
	// wait for a ticket. 0 disables the bound.
	MaxRetryAttempts int
}

// NetworkOptions configure per-attempt timeouts and retries.
type NetworkOptions struct {
	RequestTimeoutMs              int
	RetryAttempts                 int
	DelayBetweenFailedRequestsSec int
	DelayFailRequestRate          int
}

// SearchOptions hold the initial page size per search kind.
type SearchOptions struct {
	RecordsPageSize        int
	PurchaseOrdersPageSize int
	CustomersByIDsPageSize int
}

// Config holds the client configuration.
type Config struct {
	Credentials Credentials
	Throttling  ThrottlingOptions
	Network     NetworkOptions
	Search      SearchOptions

	// BaseURL is the REST root. Defaults to the account's SuiteTalk host.
	BaseURL string

	// SOAPEndpoint is the SOAP service URL. Defaults to the account's
	// SuiteTalk host plus soap.ServicePath.
	SOAPEndpoint string

	UserAgent string

	// HTTPClient sends requests. Defaults to an *http.Client without its own
	// timeout; attempts are bounded by Network.RequestTimeoutMs.
	HTTPClient Sender

	// Redis enables the response cache for cacheable GET requests.
	Redis    *redis.Client
	CacheTTL time.Duration

	// Logger defaults to the global logger with component "suitetalk-client".
	Logger *zerolog.Logger

	// Clock and NonceSource replace the signing clock and nonce generator.
	Clock       func() time.Time
	NonceSource func() string
}

// Default option values.
const (
	DefaultRequestTimeoutMs              = 600000
	DefaultRetryAttempts                 = 10
	DefaultDelayBetweenFailedRequestsSec = 5
	DefaultDelayFailRequestRate          = 20

	DefaultRecordsPageSize        = 100
	DefaultPurchaseOrdersPageSize = 50
	DefaultCustomersByIDsPageSize = 100

	DefaultCacheTTL  = 5 * time.Minute
	DefaultUserAgent = "suitetalk-client/1.0"
)

// DefaultConfig returns a configuration with default options for creds.
func DefaultConfig(creds Credentials) Config {
	return Config{
		Credentials: creds,
		Throttling: ThrottlingOptions{
			MaxRequestsPerInterval: ratelimit.DefaultMaxRequestsPerInterval,
			IntervalSeconds:        ratelimit.DefaultIntervalSeconds,
			MaxRetryAttempts:       ratelimit.DefaultMaxQueuedRetryAttempts,
		},
		Network: NetworkOptions{
			RequestTimeoutMs:              DefaultRequestTimeoutMs,
			RetryAttempts:                 DefaultRetryAttempts,
			DelayBetweenFailedRequestsSec: DefaultDelayBetweenFailedRequestsSec,
			DelayFailRequestRate:          DefaultDelayFailRequestRate,
		},
		Search: SearchOptions{
			RecordsPageSize:        DefaultRecordsPageSize,
			PurchaseOrdersPageSize: DefaultPurchaseOrdersPageSize,
			CustomersByIDsPageSize: DefaultCustomersByIDsPageSize,
		},
		UserAgent: DefaultUserAgent,
		CacheTTL:  DefaultCacheTTL,
	}
}

// Validate checks every setting. Gate and policy settings are validated
// again by their own constructors.
func (c Config) Validate() error {
	if err := c.Credentials.Validate(); err != nil {
		return err
	}
	if c.Network.RequestTimeoutMs <= 0 {
		return fmt.Errorf("%w: request timeout must be > 0, got %d", ErrInvalidConfig, c.Network.RequestTimeoutMs)
	}
	pageSizes := []struct {
		name string
		size int
	}{
		{"records", c.Search.RecordsPageSize},
		{"purchase orders", c.Search.PurchaseOrdersPageSize},
		{"customers by ids", c.Search.CustomersByIDsPageSize},
	}
	for _, p := range pageSizes {
		if p.size < 1 {
			return fmt.Errorf("%w: %s page size must be >= 1, got %d", ErrInvalidConfig, p.name, p.size)
		}
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: cache ttl must be >= 0, got %s", ErrInvalidConfig, c.CacheTTL)
	}
	return nil
}

// AccountHost returns the SuiteTalk host of an account: the account id
// lower-cased with underscores replaced by dashes.
func AccountHost(accountID string) string {
	sub := strings.ReplaceAll(strings.ToLower(accountID), "_", "-")
	return sub + ".suitetalk.api.netsuite.com"
}

func (c Config) withDefaults() Config {
	host := "https://" + AccountHost(c.Credentials.AccountID)
	if c.BaseURL == "" {
		c.BaseURL = host
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SOAPEndpoint == "" {
		c.SOAPEndpoint = host + soap.ServicePath
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}
