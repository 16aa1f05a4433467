package sentinel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/forest-guardian/vegetation-report/internal/analysis"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const DefaultBaseURL = "https://sh.dataspace.copernicus.eu"

var (
	ErrMissingCredentials = errors.New("missing required credentials: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET, or COPERNICUS_TOKEN_URL")
	ErrUnauthorized       = errors.New("unauthorized access, check your client ID and secret")
	ErrNoImagery          = errors.New("no acquisitions found in window")
	errRateLimited        = errors.New("rate limited")
	errServerError        = errors.New("server error")
	errCircuitOpen        = errors.New("circuit breaker open")
)

// Decoder turns a downloaded GeoTIFF into bands.
type Decoder interface {
	DecodeFile(path string) (analysis.Bands, error)
}

type Config struct {
	BaseURL       string
	TokenURL      string
	ClientIDs     []string
	ClientSecrets []string
	Collection    string
	MaxCloudCover float64
	// Resolution is the nominal ground resolution in meters.
	Resolution float64
	// ImageDir holds downloaded rasters, one sub directory per AOI.
	ImageDir string

	Retries        int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// HTTPClient is the transport used for token and API calls. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Collection == "" {
		c.Collection = "sentinel-2-l2a"
	}
	if c.MaxCloudCover <= 0 {
		c.MaxCloudCover = 1
	}
	if c.Resolution <= 0 {
		c.Resolution = 10
	}
	if c.Retries <= 0 {
		c.Retries = 10
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
}

// Client talks to the Sentinel Hub catalog and process APIs of the Copernicus Data Space.
type Client struct {
	cfg     Config
	clients []*http.Client
	circuit *gobreaker.CircuitBreaker
	decoder Decoder
}

// NewClient builds one OAuth2 client per configured client id / secret pair. They are
// tried in order whenever the previous one is rejected.
func NewClient(ctx context.Context, cfg Config, decoder Decoder) (*Client, error) {
	cfg.setDefaults()
	if len(cfg.ClientIDs) == 0 || len(cfg.ClientSecrets) == 0 || cfg.TokenURL == "" {
		return nil, ErrMissingCredentials
	}
	if len(cfg.ClientIDs) != len(cfg.ClientSecrets) {
		return nil, fmt.Errorf("mismatched number of client IDs and secrets")
	}
	if decoder == nil {
		return nil, errors.New("raster decoder is required")
	}

	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	clients := make([]*http.Client, 0, len(cfg.ClientIDs))
	for i, id := range cfg.ClientIDs {
		creds := &clientcredentials.Config{
			ClientID:     strings.TrimSpace(id),
			ClientSecret: strings.TrimSpace(cfg.ClientSecrets[i]),
			TokenURL:     cfg.TokenURL,
		}
		clients = append(clients, creds.Client(ctx))
	}

	// The breaker only opens once a whole retry budget has been spent on failures, and
	// rejected requests do not count against it.
	tripAfter := uint32(cfg.Retries)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "copernicus",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > tripAfter
		},
		IsSuccessful: func(err error) bool {
			var perm *permanentError
			return err == nil || errors.As(err, &perm)
		},
	})

	return &Client{cfg: cfg, clients: clients, circuit: cb, decoder: decoder}, nil
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// post sends a JSON body and returns the response body. Each credential pair is tried
// in turn when the current one is rejected.
func (c *Client) post(ctx context.Context, path, accept string, payload []byte) ([]byte, error) {
	url := c.cfg.BaseURL + path
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		return req, nil
	}

	var lastErr error
	for i, hc := range c.clients {
		body, err := c.doWithRetry(ctx, hc, buildRequest)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			slog.Warn("Copernicus credential rejected", slog.Int("credential", i), slog.String("error", err.Error()))
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (c *Client) doWithRetry(ctx context.Context, hc *http.Client, buildRequest func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			return execute(hc, req)
		})
		if err == nil {
			return result.([]byte), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return nil, perm.err
		}

		lastErr = err
		if attempt+1 >= c.cfg.Retries {
			return nil, fmt.Errorf("failed to request %s after %d attempts: %w", req.URL.Path, attempt+1, lastErr)
		}
		slog.Warn("Copernicus request failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()))

		delay := c.cfg.InitialBackoff * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.cfg.MaxBackoff {
			delay = c.cfg.MaxBackoff
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func execute(hc *http.Client, req *http.Request) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, &permanentError{fmt.Errorf("%w: %v", ErrUnauthorized, err)}
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &permanentError{ErrUnauthorized}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %d %s", errServerError, resp.StatusCode, truncate(body))
	default:
		return nil, &permanentError{fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, truncate(body))}
	}
}

func truncate(body []byte) string {
	const max = 300
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
