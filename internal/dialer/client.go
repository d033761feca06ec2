package dialer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client calls the dialer service from its peers (recaller, event monitor,
// scheduler, dispatcher).
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

// PlaceCall requests an outbound call.
func (c *Client) PlaceCall(ctx context.Context, phone, message string, backupCallee bool) error {
	q := url.Values{}
	q.Set("phone", phone)
	q.Set("message", message)
	q.Set("backup_callee", strconv.FormatBool(backupCallee))
	return c.post(ctx, "/place_call?"+q.Encode())
}

// Play requests artifact playback on a live channel.
func (c *Client) Play(ctx context.Context, asteriskChan, msgChkSum string) error {
	q := url.Values{}
	q.Set("asterisk_chan", asteriskChan)
	q.Set("msg_chk_sum", msgChkSum)
	return c.post(ctx, "/play?"+q.Encode())
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("unable to connect to the dialer service: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("dialer returned %d", resp.StatusCode)
	}
	return nil
}
