// Package gateway talks to the payment provider's checkout API: credential
// exchange, session creation and transaction polling. It never touches
// application state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clinova/booking-api/internal/model"
	"github.com/clinova/booking-api/pkg/logger"
	"github.com/clinova/booking-api/pkg/metrics"
)

var (
	// ErrAuth covers missing credentials and rejected credential exchanges.
	ErrAuth = errors.New("gateway authentication failed")
	// ErrInvalidCallbackURL means a configured callback URL failed the
	// production posture checks. Fail fast, never send it to the gateway.
	ErrInvalidCallbackURL = errors.New("invalid callback URL")
	// ErrUnavailable covers timeouts, transport failures and 5xx answers.
	ErrUnavailable = errors.New("gateway unavailable")
)

type Config struct {
	BaseURL         string
	CheckoutURL     string
	PublicKey       string
	PrivateKey      string
	MerchantID      string
	Currency        string
	TestMode        bool
	ResponseURL     string
	ConfirmationURL string
	TokenTTL        time.Duration
	TokenTTLMargin  float64
	RequestTimeout  time.Duration
	MaxRetries      int
}

// SessionHandle is what the gateway returns for a created checkout session.
type SessionHandle struct {
	SessionID   string
	CheckoutURL string
}

// PollResult is the gateway's current view of one transaction.
type PollResult struct {
	Outcome      model.GatewayOutcome
	GatewayRef   string
	GatewayTxID  string
	ResponseCode string
	Message      string
}

type Client struct {
	cfg     Config
	http    *http.Client
	logger  *logger.Logger
	metrics *metrics.Metrics
	tokens  *tokenCache
}

// Option configures a Client. Used by tests to pin the clock.
type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.tokens = newTokenCache(now)
	}
}

func NewClient(cfg Config, log *logger.Logger, m *metrics.Metrics, opts ...Option) (*Client, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("%w: credentials not configured", ErrAuth)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 10 * time.Minute
	}
	if cfg.TokenTTLMargin <= 0 || cfg.TokenTTLMargin > 1 {
		cfg.TokenTTLMargin = 0.9
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "COP"
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  log,
		metrics: m,
		tokens:  newTokenCache(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token exchanges credentials for a bearer token, serving from cache while
// the cached token has at least the configured margin of its TTL left.
func (c *Client) Token(ctx context.Context) (string, error) {
	if token, ok := c.tokens.get(); ok {
		return token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/login", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.SetBasicAuth(c.cfg.PublicKey, c.cfg.PrivateKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do("login", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: credentials rejected", ErrAuth)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: auth returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: malformed auth response", ErrUnavailable)
	}
	if body.Token == "" {
		return "", fmt.Errorf("%w: auth response missing token", ErrAuth)
	}

	cacheFor := time.Duration(float64(c.cfg.TokenTTL) * c.cfg.TokenTTLMargin)
	c.tokens.put(body.Token, cacheFor)
	return body.Token, nil
}

// CreateSession registers a checkout session for the appointment and returns
// the handle the patient is redirected to. Callback URLs are validated before
// any request leaves the process.
func (c *Client) CreateSession(ctx context.Context, appointment *model.Appointment, patient *model.Patient) (*SessionHandle, error) {
	if err := ValidateCallbackURL(c.cfg.ResponseURL, !c.cfg.TestMode); err != nil {
		return nil, fmt.Errorf("response URL: %w", err)
	}
	if err := ValidateCallbackURL(c.cfg.ConfirmationURL, !c.cfg.TestMode); err != nil {
		return nil, fmt.Errorf("confirmation URL: %w", err)
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"name":         "Medical appointment",
		"description":  appointment.Reason,
		"currency":     c.cfg.Currency,
		"amount":       formatAmount(appointment.CostCents),
		"test":         c.cfg.TestMode,
		"response":     fmt.Sprintf("%s?appointmentId=%s", c.cfg.ResponseURL, appointment.ID),
		"confirmation": c.cfg.ConfirmationURL,
		"billing": map[string]string{
			"email":     patient.Email,
			"name":      patient.FullName(),
			"typeDoc":   documentType(patient.DocumentType),
			"numberDoc": patient.DocumentID,
			"phone":     patient.Phone,
		},
		"extras": map[string]string{
			"extra1": appointment.ID.String(),
			"extra2": appointment.PatientID.String(),
			"extra3": "appointment",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payment/session/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do("create_session", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.clear()
		return nil, fmt.Errorf("%w: session token rejected", ErrAuth)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: session creation returned %d", ErrUnavailable, resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			SessionID string `json:"sessionId"`
			RouteLink string `json:"routeLink"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: malformed session response", ErrUnavailable)
	}
	if !result.Success || result.Data.SessionID == "" {
		return nil, fmt.Errorf("%w: gateway refused session", ErrUnavailable)
	}

	checkout := result.Data.RouteLink
	if checkout == "" {
		checkout = fmt.Sprintf("%s/%s", strings.TrimRight(c.cfg.CheckoutURL, "/"), result.Data.SessionID)
	}
	return &SessionHandle{SessionID: result.Data.SessionID, CheckoutURL: checkout}, nil
}

// PollStatus asks the gateway for the current state of a transaction by its
// session reference. Read-only; transient failures come back as ErrUnavailable.
func (c *Client) PollStatus(ctx context.Context, sessionID string) (*PollResult, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/transaction/detail?sessionId=%s", c.cfg.BaseURL, url.QueryEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.do("poll_status", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.clear()
		return nil, fmt.Errorf("%w: poll token rejected", ErrAuth)
	}
	if resp.StatusCode == http.StatusNotFound {
		// Gateway has no transaction yet; the checkout was never finished.
		return &PollResult{Outcome: model.OutcomePending}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: poll returned %d", ErrUnavailable, resp.StatusCode)
	}

	var result struct {
		Data struct {
			ResponseCode  json.Number `json:"x_cod_response"`
			Ref           string      `json:"x_ref_payco"`
			TransactionID string      `json:"x_transaction_id"`
			Reason        string      `json:"x_response_reason_text"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: malformed poll response", ErrUnavailable)
	}

	code := result.Data.ResponseCode.String()
	return &PollResult{
		Outcome:      model.OutcomeFromCode(code),
		GatewayRef:   result.Data.Ref,
		GatewayTxID:  result.Data.TransactionID,
		ResponseCode: code,
		Message:      result.Data.Reason,
	}, nil
}

// do runs the request with bounded retries on transport failures and 5xx
// answers, recording gateway metrics per operation.
func (c *Client) do(operation string, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	attempts := c.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	start := time.Now()
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, req.Context().Err())
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, fmt.Errorf("%w: %v", ErrUnavailable, bodyErr)
				}
				req.Body = body
			}
		}

		resp, err = c.http.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		if attempt < attempts-1 {
			c.logger.ZL.Debug().
				Str("operation", operation).
				Int("attempt", attempt+1).
				Err(err).
				Msg("retrying gateway request")
		}
	}

	status := "error"
	if err == nil {
		status = fmt.Sprintf("%d", resp.StatusCode)
	}
	if c.metrics != nil {
		c.metrics.GatewayRequests.WithLabelValues(operation, status).Inc()
		c.metrics.GatewayLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// ValidateCallbackURL enforces the posture for URLs handed to the gateway.
// Production requires HTTPS and a publicly reachable host.
func ValidateCallbackURL(raw string, production bool) error {
	if raw == "" {
		return fmt.Errorf("%w: URL is empty", ErrInvalidCallbackURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCallbackURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidCallbackURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidCallbackURL)
	}

	if production {
		if u.Scheme != "https" {
			return fmt.Errorf("%w: production URLs must use HTTPS", ErrInvalidCallbackURL)
		}
		host := strings.ToLower(u.Hostname())
		if host == "localhost" || strings.HasSuffix(host, ".local") {
			return fmt.Errorf("%w: production URLs cannot use local addresses: %s", ErrInvalidCallbackURL, host)
		}
		if ip := net.ParseIP(host); ip != nil {
			if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
				return fmt.Errorf("%w: production URLs cannot use local addresses: %s", ErrInvalidCallbackURL, host)
			}
		}
	}
	return nil
}

// formatAmount renders cents as the decimal string the gateway expects.
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// documentType maps stored document types to the gateway's accepted set.
func documentType(t string) string {
	switch strings.ToUpper(t) {
	case "CC", "CE", "TI", "NIT", "PPN", "DNI", "SSN", "LIC", "RFC", "PEP", "PPT":
		return strings.ToUpper(t)
	case "PASSPORT", "PASAPORTE":
		return "PPN"
	default:
		return "CC"
	}
}
