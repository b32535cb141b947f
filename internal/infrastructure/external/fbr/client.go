package fbr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

const (
	pathValidate  = "/validateinvoicedata"
	pathPost      = "/postinvoicedata"
	sandboxSuffix = "_sb"

	// maxErrorBody bounds how much of an error body ends up in messages
	maxErrorBody = 512
)

// Config holds the gateway connection settings
type Config struct {
	BaseURL   string
	Token     string
	Sandbox   bool
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables pacing
	Burst     int
}

// Client implements port.ComplianceGateway over the FBR digital invoicing HTTP API
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a new gateway client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("fbr: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Validate checks an invoice against the gateway without recording it
func (c *Client) Validate(ctx context.Context, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	return c.submit(ctx, "validate", pathValidate, req)
}

// Post records an invoice with the gateway and returns its official reference
func (c *Client) Post(ctx context.Context, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	return c.submit(ctx, "post", pathPost, req)
}

func (c *Client) submit(ctx context.Context, op, path string, req *port.GatewayRequest) (*port.GatewayResponse, error) {
	if req == nil || req.Payload == nil {
		return nil, fmt.Errorf("fbr %s: payload is required", op)
	}

	body, err := json.Marshal(toInvoiceRequest(req.Payload))
	if err != nil {
		return nil, fmt.Errorf("fbr %s: failed to marshal request: %w", op, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &entity.NetworkError{Op: op, Err: err}
	}

	status, respBody, err := c.doRequest(ctx, path, req.CompanyID, body)
	if err != nil {
		return nil, &entity.NetworkError{Op: op, Err: err}
	}

	log := c.logger.With(
		zap.String("op", op),
		zap.Int64("invoice_id", req.InvoiceID),
		zap.Int("status", status))

	if status >= http.StatusInternalServerError {
		log.Warn("Gateway server error", zap.String("body", truncate(respBody)))
		return nil, &entity.NetworkError{Op: op, Err: fmt.Errorf("HTTP %d", status)}
	}

	var parsed invoiceResponse
	decodeErr := json.Unmarshal(respBody, &parsed)

	if status >= http.StatusBadRequest {
		msg := fmt.Sprintf("HTTP %d: %s", status, truncate(respBody))
		if decodeErr == nil && parsed.ValidationResponse.StatusCode != "" {
			msg = parsed.rejection().Message
		}
		log.Info("Gateway refused request", zap.String("reason", msg))
		return &port.GatewayResponse{Success: false, Error: msg}, nil
	}

	if decodeErr != nil {
		log.Warn("Unreadable gateway response", zap.Error(decodeErr))
		return nil, &entity.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}

	if parsed.ValidationResponse.StatusCode != statusCodeValid {
		rejection := parsed.rejection()
		log.Info("Gateway rejected invoice", zap.Error(rejection))
		return &port.GatewayResponse{
			Success: false,
			Message: parsed.ValidationResponse.Status,
			Error:   rejection.Message,
		}, nil
	}

	if op == "post" && strings.TrimSpace(parsed.InvoiceNumber) == "" {
		log.Error("Gateway accepted post without an invoice number")
		return &port.GatewayResponse{
			Success: false,
			Message: parsed.ValidationResponse.Status,
			Error:   entity.MissingReferenceMessage,
		}, nil
	}

	log.Info("Gateway accepted invoice", zap.String("reference", parsed.InvoiceNumber))
	return &port.GatewayResponse{
		Success:          true,
		FBRInvoiceNumber: parsed.InvoiceNumber,
		Message:          parsed.ValidationResponse.Status,
	}, nil
}

// doRequest performs the HTTP call; only transport failures are returned as errors
func (c *Client) doRequest(ctx context.Context, path, companyID string, body []byte) (int, []byte, error) {
	url := c.config.BaseURL + path
	if c.config.Sandbox {
		url += sandboxSuffix
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	if companyID != "" {
		httpReq.Header.Set("X-Company-ID", companyID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

// Verify interface compliance
var _ port.ComplianceGateway = (*Client)(nil)
