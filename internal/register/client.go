package register

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client posts call-state mutations to the register service on behalf of
// the other components.
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

// RegisterCall reports a dial attempt. The phone is the caller's original
// value ("oncall" included) so retries re-resolve the alias.
func (c *Client) RegisterCall(ctx context.Context, phone, message, asteriskChan string, oncall, backupCallee bool) error {
	q := url.Values{}
	q.Set("phone", phone)
	q.Set("message", message)
	q.Set("asterisk_chan", asteriskChan)
	q.Set("oncall", strconv.FormatBool(oncall))
	q.Set("backup_callee", strconv.FormatBool(backupCallee))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register_call?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("unable to connect to the call register service: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call register returned %d", resp.StatusCode)
	}
	return nil
}

// VoiceMessage fetches the message payload bound to a channel.
func (c *Client) VoiceMessage(ctx context.Context, asteriskChan string) (message, msgChkSum string, err error) {
	q := url.Values{}
	q.Set("asterisk_chan", asteriskChan)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/msg?"+q.Encode(), nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("unable to connect to the call register service: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Message   string `json:"message"`
		MsgChkSum string `json:"msg_chk_sum"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode voice_message response: %w", err)
	}
	return out.Message, out.MsgChkSum, nil
}
