package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/buzonshare/buzonshare/pkg/observability"
)

// Verdict is the outcome of validating one key.
type Verdict struct {
	Valid     bool      `json:"valid"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Features  []string  `json:"features,omitempty"`
}

// HasFeature reports whether the verdict unlocks the named feature.
func (v Verdict) HasFeature(name string) bool {
	if !v.Valid {
		return false
	}
	for _, f := range v.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Client validates keys against the license server.
type Client struct {
	serverURL  string
	httpClient *http.Client
	cache      *expirable.LRU[string, Verdict]
	group      singleflight.Group
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a new license client
func NewClient(serverURL string, timeout time.Duration, cacheSize int, cacheTTL time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	return &Client{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      expirable.NewLRU[string, Verdict](cacheSize, nil, cacheTTL),
		metrics:    metrics,
		logger:     logger,
	}
}

// Validate returns the verdict for a key, from cache when fresh.
// Concurrent validations of the same key share one request.
func (c *Client) Validate(ctx context.Context, key string) (Verdict, error) {
	if key == "" {
		return Verdict{Valid: false, Reason: "no license key"}, nil
	}

	if verdict, ok := c.cache.Get(key); ok {
		return verdict, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		verdict, err := c.validateRemote(ctx, key)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, verdict)
		return verdict, nil
	})
	if err != nil {
		c.metrics.LicenseChecksTotal.WithLabelValues("error").Inc()
		return Verdict{}, err
	}

	verdict := result.(Verdict)
	if verdict.Valid {
		c.metrics.LicenseChecksTotal.WithLabelValues("valid").Inc()
	} else {
		c.metrics.LicenseChecksTotal.WithLabelValues("invalid").Inc()
	}
	return verdict, nil
}

// Invalidate drops a key's cached verdict, forcing the next Validate to
// hit the server.
func (c *Client) Invalidate(key string) {
	c.cache.Remove(key)
}

type validateRequest struct {
	Key string `json:"key"`
}

func (c *Client) validateRemote(ctx context.Context, key string) (Verdict, error) {
	payload, err := json.Marshal(validateRequest{Key: key})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to encode validation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.serverURL+"/v1/licenses/validate", bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to build validation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("license server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("license server returned status %d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return Verdict{}, fmt.Errorf("failed to decode validation response: %w", err)
	}

	c.logger.Info("license validated",
		"valid", verdict.Valid,
		"reason", verdict.Reason,
		"expires_at", verdict.ExpiresAt,
	)
	return verdict, nil
}
