// Package oauth implements SuiteTalk token-based authentication: OAuth 1.0
// HMAC-SHA1 request signing for the REST dialect and signed token passports
// for the SOAP dialect.
//
// A Signer is stateless apart from its immutable credentials, so one instance
// is safe for concurrent use by every request of a client. Each call produces
// fresh nonce and timestamp material; signatures are never reused.
package oauth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuth 1.0 protocol parameter names.
const (
	ParamConsumerKey     = "oauth_consumer_key"
	ParamNonce           = "oauth_nonce"
	ParamSignatureMethod = "oauth_signature_method"
	ParamTimestamp       = "oauth_timestamp"
	ParamVersion         = "oauth_version"
	ParamToken           = "oauth_token"
	ParamSignature       = "oauth_signature"
)

const (
	// SignatureMethod is the only algorithm SuiteTalk TBA accepts from this client.
	SignatureMethod = "HMAC-SHA1"

	// Version is the OAuth protocol version tag.
	Version = "1.0"

	nonceLength = 11
)

// ErrMissingCredentials is returned when a required credential field is empty.
var ErrMissingCredentials = errors.New("missing signing credentials")

// Credentials are the long-lived token-based authentication secrets of one
// NetSuite account integration.
type Credentials struct {
	// AccountID is the NetSuite account (realm), e.g. "1234567_SB1".
	AccountID string

	ConsumerKey    string
	ConsumerSecret string
	TokenID        string
	TokenSecret    string
}

// Validate reports which credential field is missing, if any.
func (c Credentials) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"account_id", c.AccountID},
		{"consumer_key", c.ConsumerKey},
		{"consumer_secret", c.ConsumerSecret},
		{"token_id", c.TokenID},
		{"token_secret", c.TokenSecret},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrMissingCredentials, f.name)
		}
	}
	return nil
}

// String keeps secrets out of logs and error messages.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccountID: %s, ConsumerKey: [redacted], TokenID: [redacted]}", c.AccountID)
}

// Params is a set of OAuth and request parameters that take part in a signature.
type Params map[string]string

// Signature is the per-attempt authentication material.
type Signature struct {
	Nonce     string
	Timestamp int64
	Value     string
}

// AuthMaterial is the result of signing one request attempt.
type AuthMaterial struct {
	Signature Signature

	// Params holds every parameter that should travel with the request,
	// oauth_signature included.
	Params Params
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithNonceSource replaces the random nonce generator.
func WithNonceSource(nonce func() string) Option {
	return func(s *Signer) {
		if nonce != nil {
			s.nonce = nonce
		}
	}
}

// Signer signs SuiteTalk requests. It never mutates its credentials.
type Signer struct {
	creds Credentials
	now   func() time.Time
	nonce func() string
}

// NewSigner validates the credentials once and returns a Signer.
func NewSigner(creds Credentials, opts ...Option) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	s := &Signer{
		creds: creds,
		now:   time.Now,
		nonce: NewNonce,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewNonce returns 11 random uppercase alphanumeric characters.
func NewNonce() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:nonceLength])
}

// Realm returns the upper-cased account identifier used as the OAuth realm.
func (s *Signer) Realm() string {
	return strings.ToUpper(s.creds.AccountID)
}

// Sign produces the OAuth 1.0 parameters and signature for one attempt of a
// request. Extra parameters never override the fixed oauth_* set; query
// parameters embedded in rawURL participate only when no parameter of the
// same name is already present. For methods other than GET the extra
// parameters are removed from the returned set after signing, since they
// travel in the request body.
func (s *Signer) Sign(method, rawURL string, extra map[string]string) (*AuthMaterial, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("request url must be absolute: %q", rawURL)
	}

	method = strings.ToUpper(method)
	sig := Signature{
		Nonce:     s.nonce(),
		Timestamp: s.now().Unix(),
	}

	params := Params{
		ParamConsumerKey:     s.creds.ConsumerKey,
		ParamNonce:           sig.Nonce,
		ParamSignatureMethod: SignatureMethod,
		ParamTimestamp:       strconv.FormatInt(sig.Timestamp, 10),
		ParamVersion:         Version,
	}
	if s.creds.TokenID != "" {
		params[ParamToken] = s.creds.TokenID
	}

	for key, value := range extra {
		if _, reserved := params[key]; reserved {
			continue
		}
		params[key] = value
	}

	for _, kv := range parseQuery(u.RawQuery) {
		if _, exists := params[kv[0]]; !exists {
			params[kv[0]] = kv[1]
		}
	}

	delete(params, ParamSignature)
	sig.Value = s.signature(baseString(method, baseURL(u), params))
	params[ParamSignature] = sig.Value

	if method != "GET" {
		for key := range extra {
			if _, reserved := reservedParams[key]; !reserved {
				delete(params, key)
			}
		}
	}

	return &AuthMaterial{Signature: sig, Params: params}, nil
}

// AuthorizationHeader signs the request and formats the result as an
// Authorization header value.
func (s *Signer) AuthorizationHeader(method, rawURL string, extra map[string]string) (string, error) {
	auth, err := s.Sign(method, rawURL, extra)
	if err != nil {
		return "", err
	}
	return s.Header(auth.Params), nil
}

// Header formats signed parameters as
// `OAuth realm="ACCOUNT", oauth_consumer_key="...", ...`. Only oauth_*
// parameters are emitted, in sorted order.
func (s *Signer) Header(params Params) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if strings.HasPrefix(key, "oauth_") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, fmt.Sprintf("realm=%q", s.Realm()))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", key, PercentEncode(params[key])))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

func (s *Signer) signature(base string) string {
	key := s.creds.ConsumerSecret + "&" + s.creds.TokenSecret
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var reservedParams = map[string]struct{}{
	ParamConsumerKey:     {},
	ParamNonce:           {},
	ParamSignatureMethod: {},
	ParamTimestamp:       {},
	ParamVersion:         {},
	ParamToken:           {},
	ParamSignature:       {},
}

// baseURL is scheme://host[:port]/path with the query dropped. Default ports
// are omitted.
func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host += ":" + port
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "https" && port == "443") || (scheme == "http" && port == "80")
}

// baseString builds METHOD&enc(baseURL)&enc(k1=v1&k2=v2...) with keys sorted.
func baseString(method, base string, params Params) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, PercentEncode(key)+"="+PercentEncode(params[key]))
	}

	return strings.ToUpper(method) + "&" + PercentEncode(base) + "&" + PercentEncode(strings.Join(pairs, "&"))
}

// parseQuery splits a raw query into unescaped key/value pairs, keeping the
// first occurrence of each key and ignoring fragments without exactly one '='.
func parseQuery(rawQuery string) [][2]string {
	if rawQuery == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out [][2]string
	for _, pair := range strings.Split(rawQuery, "&") {
		kv := strings.Split(pair, "=")
		if len(kv) != 2 {
			continue
		}
		if _, dup := seen[kv[0]]; dup {
			continue
		}
		seen[kv[0]] = struct{}{}

		value, err := url.PathUnescape(kv[1])
		if err != nil {
			value = kv[1]
		}
		out = append(out, [2]string{kv[0], value})
	}
	return out
}
