package stock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/farm-cart/internal/metrics"
	"go.uber.org/zap"
)

// Failure reasons reported on the stock_lookup_failures_total metric
const (
	ReasonTransport = "transport"
	ReasonStatus    = "status"
	ReasonDecode    = "decode"
	ReasonMissing   = "missing"
)

type stockRequest struct {
	ProductIDs []string `json:"productIds"`
}

type stockItem struct {
	ProductID string `json:"productId"`
	OnStock   *int   `json:"onStock"`
}

type stockResponse struct {
	Items []stockItem `json:"items"`
}

// Client queries the external stock API for on-hand quantities
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// NewClient creates a stock client. baseURL is the API root, e.g.
// http://localhost:8011.
func NewClient(baseURL string, timeout time.Duration, reg *metrics.Registry, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    reg,
		logger:     logger.Named("stock"),
	}
}

// GetStock returns the current stock for a product. Any failure is reported
// as zero stock.
func (c *Client) GetStock(ctx context.Context, productID string) int {
	start := time.Now()
	defer func() {
		c.metrics.StockLookupLatencySec.Observe(time.Since(start).Seconds())
	}()

	qty, reason, err := c.fetch(ctx, productID)
	if err != nil {
		c.metrics.StockLookupFailures.WithLabelValues(reason).Inc()
		c.logger.Warn("failed to get stock",
			zap.String("product_id", productID),
			zap.String("reason", reason),
			zap.Error(err))
		return 0
	}
	return qty
}

func (c *Client) fetch(ctx context.Context, productID string) (int, string, error) {
	body, err := json.Marshal(stockRequest{ProductIDs: []string{productID}})
	if err != nil {
		return 0, ReasonTransport, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stock", bytes.NewReader(body))
	if err != nil {
		return 0, ReasonTransport, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, ReasonTransport, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, ReasonStatus, fmt.Errorf("stock api returned %s", resp.Status)
	}

	var data stockResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, ReasonDecode, fmt.Errorf("decode stock response: %w", err)
	}
	if len(data.Items) == 0 {
		return 0, ReasonMissing, fmt.Errorf("no stock entry for product")
	}
	onStock := data.Items[0].OnStock
	if onStock == nil || *onStock < 0 {
		return 0, "", nil
	}
	return *onStock, "", nil
}
