package addressbook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client fetches the on-call roster over HTTP; the recaller uses it to pick
// backup callees.
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

// OnCallContacts returns the escalation-ordered roster; contacts[0] is the
// primary on-call person.
func (c *Client) OnCallContacts(ctx context.Context) ([]OnCallContact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/on_call_contacts", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to the address book service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("address book returned %d fetching the on-call roster", resp.StatusCode)
	}
	var out struct {
		Contacts []OnCallContact `json:"contacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode on_call_contacts response: %w", err)
	}
	return out.Contacts, nil
}
