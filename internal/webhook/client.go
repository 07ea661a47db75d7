package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the delivery leg the agent uses. One shot, no retry: by the
// time a delivery happens the hosted side has already marked the source
// rows Processed, so retrying here cannot recover anything and a failed
// delivery needs manual re-aggregation.
type Client struct {
	url  string
	key  string
	http *http.Client
}

func NewClient(url, key string) *Client {
	return &Client{
		url: url,
		key: key,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Deliver posts the scraped rows. Success is a response body containing
// the success marker; anything else is reported verbatim.
func (c *Client) Deliver(ctx context.Context, tableData [][]string) error {
	body, err := json.Marshal(Payload{Key: c.key, TableData: tableData})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("failed to read webhook response: %w", err)
	}

	if !strings.Contains(string(respBody), MarkerSuccess) {
		return fmt.Errorf("webhook rejected delivery: %s", strings.TrimSpace(string(respBody)))
	}
	return nil
}
