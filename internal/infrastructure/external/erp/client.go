package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// Config holds ERP endpoint configuration
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client posts purchase order decisions to the ERP REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

type statusUpdate struct {
	Status    string    `json:"status"`
	DecidedAt time.Time `json:"decided_at"`
}

// NewClient creates a new ERP client
func NewClient(cfg Config, logger *zap.Logger) port.ERPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UpdateStatus sends PUT {base}/purchase-orders/{id}/authorization-status.
// Retries are the caller's concern; a non-2xx answer is returned as an error.
func (c *Client) UpdateStatus(ctx context.Context, headerID int64, status entity.AggregateStatus) error {
	if c.baseURL == "" {
		return fmt.Errorf("ERP base URL is not configured")
	}

	payload, err := json.Marshal(statusUpdate{Status: string(status), DecidedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode status update: %w", err)
	}

	url := fmt.Sprintf("%s/purchase-orders/%d/authorization-status", c.baseURL, headerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ERP request failed", zap.Int64("header_id", headerID), zap.Error(err))
		return fmt.Errorf("ERP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("ERP rejected status update",
			zap.Int64("header_id", headerID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(body)))
		return fmt.Errorf("ERP returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Info("ERP status updated", zap.Int64("header_id", headerID), zap.String("status", string(status)))
	return nil
}
