package luis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nludevops/internal/domain"
)

type Settings struct {
	Endpoint            string
	AppID               string
	SlotName            string
	VersionID           string
	EndpointKey         string
	PrebuiltEntityTypes map[string]string
}

type Client struct {
	settings Settings
	http     *http.Client
}

func NewClient(settings Settings, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	settings.Endpoint = strings.TrimRight(strings.TrimSpace(settings.Endpoint), "/")
	if settings.SlotName == "" {
		settings.SlotName = "production"
	}
	return &Client{
		settings: settings,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.settings.Endpoint != "" && c.settings.AppID != ""
}

func (c *Client) predictURL() string {
	base := fmt.Sprintf("%s/luis/prediction/v3.0/apps/%s", c.settings.Endpoint, url.PathEscape(c.settings.AppID))
	if c.settings.VersionID != "" {
		base += "/versions/" + url.PathEscape(c.settings.VersionID) + "/predict"
	} else {
		base += "/slots/" + url.PathEscape(c.settings.SlotName) + "/predict"
	}
	q := url.Values{}
	q.Set("verbose", "true")
	q.Set("log", "false")
	q.Set("show-all-intents", "true")
	return base + "?" + q.Encode()
}

// Query returns the raw prediction response body.
func (c *Client) Query(ctx context.Context, req domain.PredictionRequest) ([]byte, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("luis prediction endpoint is not configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.settings.EndpointKey != "" {
		httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.settings.EndpointKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read luis response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("luis status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
