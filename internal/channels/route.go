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
)

// RouteChannel asks the delivery route service to (re)assign a route.
type RouteChannel struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRouteChannel creates the route-assignment channel, or nil when no route
// service is configured.
func NewRouteChannel(cfg config.RouteServiceConfig) *RouteChannel {
	if cfg.GetRouteServiceURL() == "" {
		return nil
	}
	return &RouteChannel{
		baseURL: strings.TrimRight(cfg.GetRouteServiceURL(), "/"),
		apiKey:  cfg.GetRouteServiceAPIKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *RouteChannel) Kind() domain.ChannelKind { return domain.ChannelRoute }

type routeAssignRequest struct {
	RouteID string `json:"routeId"`
	Note    string `json:"note"`
}

func (c *RouteChannel) Send(ctx context.Context, out Outbound) error {
	body, err := json.Marshal(routeAssignRequest{
		RouteID: out.Subject.EntityID,
		Note:    out.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal route payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assignments", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("route service request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("route service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
