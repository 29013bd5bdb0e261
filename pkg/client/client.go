// Package client provides the SuiteTalk HTTP client with admission control,
// retries, request signing and caching.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/suitetalk-client/pkg/cache"
	"github.com/Sternrassler/suitetalk-client/pkg/logging"
	"github.com/Sternrassler/suitetalk-client/pkg/oauth"
	"github.com/Sternrassler/suitetalk-client/pkg/pagination"
	"github.com/Sternrassler/suitetalk-client/pkg/ratelimit"
	"github.com/Sternrassler/suitetalk-client/pkg/soap"
	"github.com/rs/zerolog"
)

// Sender sends a single HTTP request. *http.Client implements it.
type Sender interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one logical REST call. It is never modified by the
// client; every attempt signs a fresh copy.
type Request struct {
	Method string

	// URL is absolute or a path relative to Config.BaseURL.
	URL string

	// Operation labels logs and metrics. Defaults to Method.
	Operation string

	Payload     []byte
	ContentType string
	Header      http.Header

	// Params are extra signed parameters, such as script and deploy of a
	// RESTlet. For GET they are added to the URL query; other methods must
	// carry them in Payload.
	Params map[string]string

	Mark Mark

	// Cacheable allows a GET response to be served from and stored in the
	// response cache.
	Cacheable bool
}

// Response is a completed REST call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromCache is set when the response was served by the response cache.
	FromCache bool
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client is the SuiteTalk client. It is safe for concurrent use; every
// operation shares one admission gate.
type Client struct {
	config  Config
	signer  *oauth.Signer
	gate    *ratelimit.Gate
	policy  *Policy
	cache   *cache.Manager
	timeout time.Duration
	logger  zerolog.Logger

	searches *pagination.Executor[soap.SearchRecord]
	batch    *pagination.Batch[soap.SearchRecord]
}

// New creates a new SuiteTalk client. Every setting is validated here.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	logger := logging.NewLogger("suitetalk-client")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	var signerOpts []oauth.Option
	if cfg.Clock != nil {
		signerOpts = append(signerOpts, oauth.WithClock(cfg.Clock))
	}
	if cfg.NonceSource != nil {
		signerOpts = append(signerOpts, oauth.WithNonceSource(cfg.NonceSource))
	}
	signer, err := oauth.NewSigner(cfg.Credentials, signerOpts...)
	if err != nil {
		return nil, err
	}

	gate, err := ratelimit.NewGate(ratelimit.Config{
		MaxRequestsPerInterval: cfg.Throttling.MaxRequestsPerInterval,
		IntervalSeconds:        cfg.Throttling.IntervalSeconds,
		MaxQueuedRetryAttempts: cfg.Throttling.MaxRetryAttempts,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	policy, err := NewPolicy(
		cfg.Network.RetryAttempts,
		cfg.Network.DelayBetweenFailedRequestsSec,
		cfg.Network.DelayFailRequestRate,
		logger,
	)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:  cfg,
		signer:  signer,
		gate:    gate,
		policy:  policy,
		timeout: time.Duration(cfg.Network.RequestTimeoutMs) * time.Millisecond,
		logger:  logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, logger)
	}
	c.searches = pagination.NewExecutor[soap.SearchRecord](c, logger)
	c.batch = pagination.NewBatch(c.searches, pagination.BatchConfig{
		MaxConcurrency: cfg.Throttling.MaxRequestsPerInterval,
	})

	logger.Info().
		Str("account", signer.Realm()).
		Str("base_url", cfg.BaseURL).
		Str("soap_endpoint", cfg.SOAPEndpoint).
		Int("max_requests_per_interval", cfg.Throttling.MaxRequestsPerInterval).
		Int("interval_seconds", cfg.Throttling.IntervalSeconds).
		Bool("cache", c.cache != nil).
		Msg("SuiteTalk client ready")

	return c, nil
}

// call is one logical remote operation. build is invoked once per attempt
// and must sign the request it returns.
type call struct {
	operation string
	endpoint  string
	mark      Mark
	size      int
	build     func(ctx context.Context) (*http.Request, error)
	check     func(resp *Response) error
	bypass    func(err error) bool
}

// execute runs c through admission, retries and the transport. One gate
// ticket covers every attempt of the call.
func (c *Client) execute(ctx context.Context, op *call) (*Response, error) {
	if err := ctx.Err(); err != nil {
		requestsTotal.WithLabelValues(op.operation, "cancelled").Inc()
		return nil, op.cancelled(err)
	}

	var resp *Response
	admitted := false
	err := c.gate.Execute(ctx, func(ctx context.Context) error {
		admitted = true
		return c.policy.Execute(ctx, func(ctx context.Context) error {
			r, err := c.attempt(ctx, op)
			if err != nil {
				return err
			}
			resp = r
			return nil
		}, Hooks{
			Describe: func() string {
				return op.operation + " " + op.endpoint + " [mark " + op.mark.String() + "]"
			},
			OnFatal: func(err error) {
				c.logFatal(op, err)
			},
			Bypass: op.bypass,
		})
	})
	if err != nil {
		if !admitted {
			return nil, op.admissionError(err)
		}
		return nil, err
	}
	return resp, nil
}

// attempt makes a single signed request bounded by the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, op *call) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := op.build(attemptCtx)
	if err != nil {
		return nil, op.fail(KindUnexpected, 0, fmt.Errorf("build request: %w", err))
	}

	logger := logging.WithMark(c.logger, op.mark.String())
	logger.Debug().
		Str("operation", op.operation).
		Str("method", req.Method).
		Str("endpoint", op.endpoint).
		Msg("Executing SuiteTalk request")

	start := time.Now()
	httpResp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		requestDuration.WithLabelValues(op.operation).Observe(time.Since(start).Seconds())
		return nil, c.transportError(ctx, attemptCtx, op, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	requestDuration.WithLabelValues(op.operation).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.transportError(ctx, attemptCtx, op, fmt.Errorf("read body: %w", err))
	}

	requestsTotal.WithLabelValues(op.operation, strconv.Itoa(httpResp.StatusCode)).Inc()
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}
	if err := op.check(resp); err != nil {
		logger.Warn().
			Str("operation", op.operation).
			Str("endpoint", op.endpoint).
			Int("status", resp.StatusCode).
			Str("error_kind", string(KindOf(err))).
			Msg("SuiteTalk request error")
		return nil, err
	}
	return resp, nil
}

// transportError classifies a failure of the sender. Caller cancellation
// takes precedence over the attempt's own deadline.
func (c *Client) transportError(ctx, attemptCtx context.Context, op *call, err error) error {
	switch {
	case ctx.Err() != nil:
		requestsTotal.WithLabelValues(op.operation, "cancelled").Inc()
		return op.cancelled(ctx.Err())
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		requestsTotal.WithLabelValues(op.operation, "timeout").Inc()
		e := op.fail(KindTransientNetwork, 0, err)
		e.TimedOut = true
		e.Message = fmt.Sprintf("no response within %s", c.timeout)
		return e
	default:
		requestsTotal.WithLabelValues(op.operation, "network_error").Inc()
		return op.fail(KindTransientNetwork, 0, err)
	}
}

// logFatal records a non-retryable failure. Unexpected errors carry the
// full call context.
func (c *Client) logFatal(op *call, err error) {
	if KindOf(err) != KindUnexpected {
		return
	}
	logger := logging.WithMark(c.logger, op.mark.String())
	logger.Error().
		Err(err).
		Str("operation", op.operation).
		Str("endpoint", op.endpoint).
		Int("payload_size", op.size).
		Msg("Unexpected SuiteTalk failure")
}

func (op call) fail(kind Kind, status int, err error) *Error {
	return &Error{
		Kind:       kind,
		StatusCode: status,
		Mark:       op.mark.String(),
		Endpoint:   op.endpoint,
		Err:        err,
	}
}

func (op call) cancelled(err error) *Error {
	return op.fail(KindCancelled, 0, fmt.Errorf("%w: %w", ErrCancelled, err))
}

// admissionError classifies a failure of the gate before the call was
// admitted.
func (op call) admissionError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return op.cancelled(err)
	case errors.Is(err, ratelimit.ErrQueueFull):
		return op.fail(KindTransientNetwork, 0, err)
	default:
		return op.fail(KindUnexpected, 0, err)
	}
}

// ExecuteSigned sends an OAuth 1.0 signed REST request. Transient failures
// are retried; other failures are returned as *Error.
func (c *Client) ExecuteSigned(ctx context.Context, r Request) (*Response, error) {
	method := strings.ToUpper(r.Method)
	if method == "" {
		method = http.MethodGet
	}
	operation := r.Operation
	if operation == "" {
		operation = method
	}
	mark := r.Mark.orNew()

	target, err := c.resolve(r.URL, method, r.Params)
	if err != nil {
		return nil, &Error{Kind: KindClientRejected, Mark: mark.String(), Endpoint: r.URL, Err: err}
	}

	op := call{
		operation: operation,
		endpoint:  target.Path,
		mark:      mark,
		size:      len(r.Payload),
		check: func(resp *Response) error {
			return checkREST(resp, mark, target.Path)
		},
	}
	op.build = func(ctx context.Context) (*http.Request, error) {
		return c.buildREST(ctx, method, target.String(), r)
	}

	if err := ctx.Err(); err != nil {
		requestsTotal.WithLabelValues(operation, "cancelled").Inc()
		return nil, op.cancelled(err)
	}

	cacheable := c.cache != nil && r.Cacheable && method == http.MethodGet
	key := cache.CacheKey{Account: c.config.Credentials.AccountID, Path: target.Path, Query: target.Query()}
	if cacheable {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			requestsTotal.WithLabelValues(operation, "cache_hit").Inc()
			return &Response{
				StatusCode: entry.StatusCode,
				Header:     entry.Headers,
				Body:       entry.Data,
				FromCache:  true,
			}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", target.Path).Msg("Cache get error")
		}
	}

	resp, err := c.execute(ctx, &op)
	if err != nil {
		return nil, err
	}

	switch {
	case cacheable:
		if entry := cache.ResponseToEntry(resp.StatusCode, resp.Header, resp.Body, c.config.CacheTTL); entry != nil {
			if err := c.cache.Set(ctx, key, entry); err != nil {
				c.logger.Warn().Err(err).Str("endpoint", target.Path).Msg("Failed to cache response")
			}
		}
	case c.cache != nil && method != http.MethodGet:
		if _, err := c.cache.Invalidate(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", target.Path).Msg("Failed to invalidate cached responses")
		}
	}
	return resp, nil
}

// resolve builds the absolute request URL. For GET the extra signed params
// are set on the query, replacing values already present.
func (c *Client) resolve(raw, method string, params map[string]string) (*url.URL, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = c.config.BaseURL + "/" + strings.TrimLeft(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}

	if method == http.MethodGet && len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (c *Client) buildREST(ctx context.Context, method, target string, r Request) (*http.Request, error) {
	auth, err := c.signer.AuthorizationHeader(method, target, r.Params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(r.Payload) > 0 {
		body = bytes.NewReader(r.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("User-Agent", c.config.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if len(r.Payload) > 0 {
		contentType := r.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// restError is the error document of the REST record service.
type restError struct {
	Title   string `json:"title"`
	Details []struct {
		Detail    string `json:"detail"`
		ErrorCode string `json:"o:errorCode"`
	} `json:"o:errorDetails"`
}

// checkREST classifies a non-2xx REST response.
func checkREST(resp *Response, mark Mark, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	e := &Error{
		Kind:       classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		Mark:       mark.String(),
		Endpoint:   endpoint,
	}

	var doc restError
	if json.Unmarshal(resp.Body, &doc) == nil {
		if doc.Title != "" {
			e.Message = doc.Title
		}
		if len(doc.Details) > 0 {
			e.Code = doc.Details[0].ErrorCode
			if doc.Details[0].Detail != "" {
				e.Message = doc.Details[0].Detail
			}
		}
	}
	return e
}

// Get performs a signed, cacheable GET request to path.
func (c *Client) Get(ctx context.Context, path string, mark Mark) (*Response, error) {
	return c.ExecuteSigned(ctx, Request{
		Method:    http.MethodGet,
		URL:       path,
		Operation: "get",
		Mark:      mark,
		Cacheable: true,
	})
}

// RecordPath is the REST path of a record collection.
const RecordPath = "/services/rest/record/v1/"

// ListLimit is the page size of REST record listings.
const ListLimit = 1000

// recordList is a page of the REST record list endpoint.
type recordList struct {
	Count        int  `json:"count"`
	HasMore      bool `json:"hasMore"`
	Offset       int  `json:"offset"`
	TotalResults int  `json:"totalResults"`
	Items        []struct {
		ID string `json:"id"`
	} `json:"items"`
}

// ListRecordIDs returns the internal ids of every record of recordType,
// reading the REST listing page by page.
func (c *Client) ListRecordIDs(ctx context.Context, recordType string, mark Mark) ([]string, error) {
	mark = mark.orNew()
	path := RecordPath + url.PathEscape(recordType)

	return pagination.CollectOffsetPages(ctx, ListLimit, func(ctx context.Context, limit, offset int) (*pagination.OffsetPage[string], error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(offset))

		resp, err := c.ExecuteSigned(ctx, Request{
			Method:    http.MethodGet,
			URL:       path + "?" + q.Encode(),
			Operation: "list_" + recordType,
			Mark:      mark,
		})
		if err != nil {
			return nil, err
		}

		var list recordList
		if err := resp.DecodeJSON(&list); err != nil {
			return nil, &Error{Kind: KindUnexpected, StatusCode: resp.StatusCode, Mark: mark.String(), Endpoint: path, Err: err}
		}

		page := &pagination.OffsetPage[string]{
			Offset:       list.Offset,
			Count:        list.Count,
			TotalResults: list.TotalResults,
			HasMore:      list.HasMore,
			Items:        make([]string, 0, len(list.Items)),
		}
		for _, item := range list.Items {
			page.Items = append(page.Items, item.ID)
		}
		return page, nil
	})
}

// Admission reports the current state of the admission gate.
func (c *Client) Admission() ratelimit.State {
	return c.gate.Snapshot()
}

// Close closes the client and releases idle connections. The Redis client
// is owned by the caller and stays open.
func (c *Client) Close() error {
	type idleCloser interface {
		CloseIdleConnections()
	}
	if ic, ok := c.config.HTTPClient.(idleCloser); ok {
		ic.CloseIdleConnections()
	}
	return nil
}
