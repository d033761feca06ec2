package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client asks the audio cache service for synthesis and readiness; the
// event monitor is its only caller.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// MakeAudio requests synthesis for (message, msgChkSum). A 200 answer means
// the artifact exists or its synthesis was dispatched.
func (c *Client) MakeAudio(ctx context.Context, message, msgChkSum string) error {
	q := url.Values{}
	q.Set("message", message)
	q.Set("msg_chk_sum", msgChkSum)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/make_audio?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("unable to connect to the audio cache service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio cache returned %d", resp.StatusCode)
	}
	return nil
}

// IsAudioReady probes for a valid artifact.
func (c *Client) IsAudioReady(ctx context.Context, msgChkSum string) (bool, error) {
	q := url.Values{}
	q.Set("msg_chk_sum", msgChkSum)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/is_audio_ready?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("unable to connect to the audio cache service: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode is_audio_ready response: %w", err)
	}
	return out.Exists, nil
}
