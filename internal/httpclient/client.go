// Package httpclient provides a centralized HTTP client factory with unified configuration.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// ClientConfig holds configuration options for creating HTTP clients
type ClientConfig struct {
	// MaxIdleConns controls the maximum number of idle (keep-alive) connections across all hosts
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle (keep-alive) connections to keep per-host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is the maximum amount of time an idle connection will remain idle before closing itself
	IdleConnTimeout time.Duration

	// Timeout specifies a time limit for requests made by the client
	Timeout time.Duration

	// DialTimeout is the maximum amount of time a dial will wait for a connect to complete
	DialTimeout time.Duration

	// TLSHandshakeTimeout specifies the maximum amount of time to wait for a TLS handshake
	TLSHandshakeTimeout time.Duration
}

// getEnvDuration reads a duration from an environment variable, returning the
// default if not set or invalid. Accepts plain integers (seconds) or Go
// duration strings (e.g. "10m").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}

// DefaultConfig returns a ClientConfig for long-running calls to the
// inference runtime. The overall timeout is generous because generation is
// synchronous and can legitimately take minutes.
// Overridable via HTTP_TIMEOUT (seconds, or Go duration format).
func DefaultConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		Timeout:             getEnvDuration("HTTP_TIMEOUT", 600*time.Second),
		DialTimeout:         30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// DownloadConfig returns a ClientConfig for fetching remote images. Unlike
// generation calls these must not hang indefinitely.
// Overridable via DOWNLOAD_TIMEOUT (seconds, or Go duration format).
func DownloadConfig() ClientConfig {
	cfg := DefaultConfig()
	cfg.Timeout = getEnvDuration("DOWNLOAD_TIMEOUT", 60*time.Second)
	return cfg
}

// New creates a new HTTP client with the provided configuration.
// If config is nil, DefaultConfig() is used.
func New(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}
