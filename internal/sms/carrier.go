// Package sms delivers alert text through an SMS carrier. Carrier SDK
// specifics stay behind the Carrier interface; sends run on a bounded
// worker pool since carrier round-trips are slow.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Carrier sends one message to one number.
type Carrier interface {
	Name() string
	Send(ctx context.Context, phone, message string) error
}

// ── Twilio ───────────────────────────────────────────────────────────

type TwilioCarrier struct {
	accountSID string
	authToken  string
	from       string
	httpc      *http.Client
}

func NewTwilioCarrier(accountSID, authToken, from string, timeout time.Duration) *TwilioCarrier {
	return &TwilioCarrier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpc:      &http.Client{Timeout: timeout},
	}
}

func (c *TwilioCarrier) Name() string { return "twilio" }

func (c *TwilioCarrier) Send(ctx context.Context, phone, message string) error {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", c.accountSID)
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", c.from)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("unable to reach twilio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// ── on-premise gateway ───────────────────────────────────────────────

// OnPremCarrier posts to a self-hosted SMS gateway that accepts the same
// query-string shape as the rest of the system.
type OnPremCarrier struct {
	baseURL string
	httpc   *http.Client
}

func NewOnPremCarrier(baseURL string, timeout time.Duration) *OnPremCarrier {
	return &OnPremCarrier{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *OnPremCarrier) Name() string { return "on_premise" }

func (c *OnPremCarrier) Send(ctx context.Context, phone, message string) error {
	q := url.Values{}
	q.Set("phone", phone)
	q.Set("message", message)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send_sms?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("unable to reach the sms gateway: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}
	return nil
}
