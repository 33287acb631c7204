package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"opspulse_backend/internal/signals/domain"
	"opspulse_backend/platform/config"
	"opspulse_backend/platform/logger"
	"opspulse_backend/platform/phone"
)

// GatewayClient talks to the hosted voice/SMS gateway. One client backs both
// the call and sms channels.
type GatewayClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewGatewayClient creates a gateway client, or nil when no gateway is
// configured. A nil client makes both channels unavailable, which the
// dispatcher reports as dispatch failures.
func NewGatewayClient(cfg config.GatewayConfig, log *logger.Logger) *GatewayClient {
	if cfg.GetGatewayURL() == "" {
		return nil
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(cfg.GetGatewayURL(), "/"),
		apiKey:  cfg.GetGatewayAPIKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type gatewayRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (c *GatewayClient) post(ctx context.Context, path, phoneNumber, message string) error {
	normalized := phone.NormalizeE164(phoneNumber)
	if normalized == "" {
		return fmt.Errorf("no dialable number for %q", phoneNumber)
	}

	body, err := json.Marshal(gatewayRequest{Phone: normalized, Message: message})
	if err != nil {
		return fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}

// CallChannel places automated voice calls through the gateway.
type CallChannel struct {
	client *GatewayClient
}

// NewCallChannel creates the voice channel, or nil without a gateway.
func NewCallChannel(client *GatewayClient) *CallChannel {
	if client == nil {
		return nil
	}
	return &CallChannel{client: client}
}

func (c *CallChannel) Kind() domain.ChannelKind { return domain.ChannelCall }

func (c *CallChannel) Send(ctx context.Context, out Outbound) error {
	if err := c.client.post(ctx, "/calls", out.To, out.Body); err != nil {
		return err
	}
	c.client.log.Info("call placed", "subject", out.Subject.String())
	return nil
}

// SMSChannel sends text messages through the gateway.
type SMSChannel struct {
	client *GatewayClient
}

// NewSMSChannel creates the sms channel, or nil without a gateway.
func NewSMSChannel(client *GatewayClient) *SMSChannel {
	if client == nil {
		return nil
	}
	return &SMSChannel{client: client}
}

func (c *SMSChannel) Kind() domain.ChannelKind { return domain.ChannelSMS }

func (c *SMSChannel) Send(ctx context.Context, out Outbound) error {
	if err := c.client.post(ctx, "/messages", out.To, out.Body); err != nil {
		return err
	}
	c.client.log.Info("sms sent", "subject", out.Subject.String())
	return nil
}
