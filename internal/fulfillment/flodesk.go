package fulfillment

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

type Subscriber struct {
	Email        string            `json:"email"`
	FirstName    string            `json:"first_name,omitempty"`
	LastName     string            `json:"last_name,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	SegmentIDs   []string          `json:"segment_ids,omitempty"`
}

// Flodesk upserts subscribers; POST /subscribers creates or updates by email.
type Flodesk struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewFlodesk(baseURL, apiKey string) *Flodesk {
	return &Flodesk{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *Flodesk) Upsert(ctx context.Context, sub Subscriber) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/subscribers", bytes.NewReader(body))
	if err != nil {
		return err
	}
	// API key as basic-auth username, empty password
	req.SetBasicAuth(f.APIKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "storefront-checkout/1.0")

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("flodesk request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("flodesk api error: %d - %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
