package dialer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OnCallAlias is the phone placeholder resolved against the address book at
// dial time.
const OnCallAlias = "oncall"

// OnCallResolver maps a requested phone value to the number to actually
// dial. Literal numbers pass through; the on-call alias asks the address
// book for the current primary contact.
type OnCallResolver interface {
	Resolve(ctx context.Context, phone string) (resolved string, oncall bool, err error)
}

// AddressBookResolver resolves the alias through the address-book HTTP API.
type AddressBookResolver struct {
	baseURL string
	httpc   *http.Client
}

func NewAddressBookResolver(baseURL string, timeout time.Duration) *AddressBookResolver {
	return &AddressBookResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (r *AddressBookResolver) Resolve(ctx context.Context, phone string) (string, bool, error) {
	if phone != OnCallAlias {
		return phone, false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/on_call_contact", nil)
	if err != nil {
		return "", true, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("unable to connect to the address book service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", true, fmt.Errorf("address book returned %d resolving the on-call contact", resp.StatusCode)
	}
	var out struct {
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", true, fmt.Errorf("decode on_call_contact response: %w", err)
	}
	if out.PhoneNumber == "" {
		return "", true, fmt.Errorf("address book returned an on-call contact without a phone number")
	}
	return out.PhoneNumber, true, nil
}
