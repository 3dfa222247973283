package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"delixmi-order-services/internal/pricing"

	"go.uber.org/zap"
)

var ErrNoRoute = errors.New("routing provider returned no route")

// Client queries an OSRM-compatible routing service for the driving distance
// and duration between two points. Callers treat any error as a signal to use
// the pricing engine's deterministic fallback.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (c *Client) Distance(ctx context.Context, origin, dest pricing.Point) (pricing.DistanceResult, error) {
	if c == nil || c.baseURL == "" {
		return pricing.DistanceResult{}, ErrNoRoute
	}

	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		c.baseURL, origin.Longitude, origin.Latitude, dest.Longitude, dest.Latitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pricing.DistanceResult{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("routing query failed", zap.Error(err))
		}
		return pricing.DistanceResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pricing.DistanceResult{}, fmt.Errorf("routing provider status %d", resp.StatusCode)
	}

	var body routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return pricing.DistanceResult{}, err
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return pricing.DistanceResult{}, ErrNoRoute
	}

	route := body.Routes[0]
	return pricing.DistanceResult{
		DistanceKm:  route.Distance / 1000,
		DurationMin: int(route.Duration/60) + 1,
	}, nil
}
