// Command suitetalk-proxy hosts the SuiteTalk client behind a small HTTP
// service: signed REST GET pass-through, health checks and metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/suitetalk-client/pkg/client"
	"github.com/Sternrassler/suitetalk-client/pkg/config"
	"github.com/Sternrassler/suitetalk-client/pkg/logging"
	"github.com/Sternrassler/suitetalk-client/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		logger := logging.NewLogger("suitetalk-proxy")
		logger.Fatal().Err(err).Msg("Proxy failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("suitetalk-proxy")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Redis = redisClient
	clientLogger := logging.NewLogger("suitetalk-client")
	clientCfg.Logger = &clientLogger

	c, err := client.New(clientCfg)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newMux(c, redisClient, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Starting SuiteTalk proxy server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newMux wires the proxy routes. redisClient may be nil.
func newMux(c *client.Client, redisClient *redis.Client, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.HandleFunc("/admission", admissionHandler(c))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/rest/", restProxyHandler(c, logger))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	}
}

func admissionHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c.Admission())
	}
}

// restProxyHandler forwards GET /rest/<path>?<query> to the SuiteTalk REST
// service as a signed, cacheable request. X-Correlation-Id becomes the mark.
func restProxyHandler(c *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		target := strings.TrimPrefix(r.URL.Path, "/rest")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		mark := client.Mark(r.Header.Get("X-Correlation-Id"))

		resp, err := c.ExecuteSigned(r.Context(), client.Request{
			Method:    http.MethodGet,
			URL:       target,
			Operation: "proxy_get",
			Mark:      mark,
			Cacheable: true,
		})
		if err != nil {
			status := statusFor(err)
			logger.Warn().
				Err(err).
				Str("endpoint", target).
				Str("error_kind", string(client.KindOf(err))).
				Int("status", status).
				Msg("Proxy request failed")
			http.Error(w, err.Error(), status)
			return
		}

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		if resp.FromCache {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := w.Write(resp.Body); err != nil {
			logger.Warn().Err(err).Msg("Failed to write response")
		}
	}
}

// statusFor maps a client error to the proxy's response status.
func statusFor(err error) int {
	switch client.KindOf(err) {
	case client.KindCancelled:
		return http.StatusGatewayTimeout
	case client.KindClientRejected, client.KindUnauthorized:
		var e *client.Error
		if errors.As(err, &e) && e.StatusCode != 0 {
			return e.StatusCode
		}
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
