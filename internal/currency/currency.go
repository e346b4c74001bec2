// Package currency looks up exchange rates from an exchangerate-api style
// pair endpoint. Unknown pairs and transport failures are reported as absent;
// callers substitute an identity rate rather than propagating the failure.
package currency

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/KhangChau12/scholarship-advisor/internal/cache"
)

// Client queries the rate service. All lookups go through the shared cache
// when one is configured; rates move slowly enough that a stale-by-minutes
// answer is fine for cost estimates.
type Client struct {
	HTTPBaseURL string
	APIKey      string
	HTTPClient  *http.Client
	Cache       *cache.Cache
	Logger      *zap.Logger
}

type pairResponse struct {
	Result         string  `json:"result"`
	ConversionRate float64 `json:"conversion_rate"`
}

func (c Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// Rate returns the conversion rate from one currency code to another, or
// absent when the pair is unknown or the service cannot be reached.
func (c Client) Rate(ctx context.Context, from string, to string) (float64, bool) {
	fromCode := strings.ToUpper(strings.TrimSpace(from))
	toCode := strings.ToUpper(strings.TrimSpace(to))
	if fromCode == "" || toCode == "" {
		return 0, false
	}
	if fromCode == toCode {
		return 1, true
	}

	cacheKey := cache.Key("rate", fromCode, toCode)
	if c.Cache != nil {
		if cached, hit := c.Cache.Get(cacheKey); hit {
			if rate, err := strconv.ParseFloat(cached, 64); err == nil {
				return rate, true
			}
		}
	}

	endpoint := strings.TrimRight(c.HTTPBaseURL, "/") + "/v6/" + c.APIKey + "/pair/" + fromCode + "/" + toCode
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if buildErr != nil {
		return 0, false
	}
	httpResponse, httpErr := c.httpClient().Do(httpRequest)
	if httpErr != nil {
		c.logger().Debug("currency lookup failed", zap.String("pair", fromCode+"/"+toCode), zap.Error(httpErr))
		return 0, false
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		c.logger().Debug("currency lookup rejected",
			zap.String("pair", fromCode+"/"+toCode),
			zap.Int("status", httpResponse.StatusCode),
		)
		return 0, false
	}

	var decoded pairResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&decoded); err != nil {
		return 0, false
	}
	if decoded.Result != "success" || decoded.ConversionRate <= 0 {
		return 0, false
	}

	if c.Cache != nil {
		c.Cache.Put(cacheKey, strconv.FormatFloat(decoded.ConversionRate, 'f', -1, 64))
	}
	return decoded.ConversionRate, true
}
