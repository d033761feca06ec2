// Package ari speaks the Asterisk REST Interface: originating channels,
// playing media, and handing the dialplan back, plus the typed view of the
// ARI WebSocket event stream.
package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client issues control requests against one Asterisk instance.
type Client struct {
	baseURL  string
	user     string
	pass     string
	chanType string
	httpc    *http.Client
	log      zerolog.Logger
}

type Options struct {
	BaseURL  string // e.g. http://pbx:8088
	User     string
	Pass     string
	ChanType string // endpoint descriptor template, see Endpoint
	Timeout  time.Duration
	Log      zerolog.Logger
}

func NewClient(opts Options) *Client {
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		user:     opts.User,
		pass:     opts.Pass,
		chanType: opts.ChanType,
		httpc:    &http.Client{Timeout: opts.Timeout},
		log:      opts.Log,
	}
}

// Endpoint builds the channel endpoint descriptor for a phone number from
// the configured channel-type template. Three forms are supported:
//
//	"PJSIP/{phone}@trunk"  — template with a {phone} placeholder
//	"SIP/trunk"            — provider trunk: SIP/<phone>@trunk
//	"SIP"                  — bare technology: SIP/<phone>
func Endpoint(chanType, phone string) string {
	if strings.Contains(chanType, "{phone}") {
		return strings.ReplaceAll(chanType, "{phone}", phone)
	}
	if prefix, suffix, ok := strings.Cut(chanType, "/"); ok {
		return fmt.Sprintf("%s/%s@%s", prefix, phone, suffix)
	}
	return fmt.Sprintf("%s/%s", chanType, phone)
}

// OriginateParams carries the dialplan coordinates for a new channel.
type OriginateParams struct {
	Phone     string
	Extension string
	Context   string
	CallerID  string
}

// Originate places a call and returns the PBX's HTTP status plus the new
// channel identifier (only meaningful on 200).
func (c *Client) Originate(ctx context.Context, p OriginateParams) (status int, channelID string, err error) {
	q := url.Values{}
	q.Set("endpoint", Endpoint(c.chanType, p.Phone))
	q.Set("extension", p.Extension)
	q.Set("context", p.Context)
	q.Set("callerId", p.CallerID)

	resp, err := c.post(ctx, "/ari/channels?"+q.Encode())
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log.Error().Int("status", resp.StatusCode).Str("body", string(body)).
			Str("phone", p.Phone).Msg("unable to initialize the call")
		return resp.StatusCode, "", nil
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return resp.StatusCode, "", fmt.Errorf("decode originate response: %w", err)
	}
	return resp.StatusCode, out.ID, nil
}

// Play asks the PBX to play a sound URI on a channel. Asterisk answers 201
// when the playback was queued.
func (c *Client) Play(ctx context.Context, asteriskChan, mediaURI string) (int, error) {
	q := url.Values{}
	q.Set("media", "sound:"+mediaURI)
	resp, err := c.post(ctx, "/ari/channels/"+url.PathEscape(asteriskChan)+"/play?"+q.Encode())
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Continue hands the channel back to the dialplan, leaving the Stasis
// application. Asterisk answers 204. The channel must never be left parked
// in the control application, so callers issue this regardless of the
// playback outcome.
func (c *Client) Continue(ctx context.Context, asteriskChan string) (int, error) {
	resp, err := c.post(ctx, "/ari/channels/"+url.PathEscape(asteriskChan)+"/continue")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// EventsURL returns the ws:// URL of the ARI event stream for a Stasis app.
func (c *Client) EventsURL(stasisApp string) string {
	wsBase := strings.Replace(c.baseURL, "http", "ws", 1)
	q := url.Values{}
	q.Set("api_key", c.user+":"+c.pass)
	q.Set("app", stasisApp)
	return wsBase + "/ari/events?" + q.Encode()
}

func (c *Client) post(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.pass)
	return c.httpc.Do(req)
}
