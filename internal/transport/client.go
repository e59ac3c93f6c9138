package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goodnatureofminers/sealtransfer/internal/model"
)

var (
	// ErrUnsupportedEndpoint is returned for endpoint schemes the client cannot speak.
	ErrUnsupportedEndpoint = errors.New("unsupported relay endpoint")
	// ErrNotFound means the relay holds nothing for the terminal yet.
	ErrNotFound = errors.New("nothing relayed for terminal")
	ErrRejected = errors.New("relay rejected request")
)

// Client talks to relays named in invoice endpoints.
type Client struct {
	http *http.Client
}

// NewClient builds a Client; a nil httpClient gets a default with a timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{http: httpClient}
}

// BaseURL maps an invoice endpoint to the relay's HTTP base URL. rpc and rpcs
// endpoints are served over http and https.
func BaseURL(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEndpoint, err)
	}
	switch u.Scheme {
	case "http", "https":
	case "rpc":
		u.Scheme = "http"
	case "rpcs":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEndpoint, endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %s has no host", ErrUnsupportedEndpoint, endpoint)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}

// Post uploads a consignment for terminal.
func (c *Client) Post(ctx context.Context, endpoint string, terminal model.Terminal, data []byte) error {
	_, err := c.do(ctx, http.MethodPost, endpoint, terminal, "", "application/octet-stream", data)
	return err
}

// Fetch downloads the consignment posted for terminal.
func (c *Client) Fetch(ctx context.Context, endpoint string, terminal model.Terminal) ([]byte, error) {
	return c.do(ctx, http.MethodGet, endpoint, terminal, "", "", nil)
}

// Acknowledge records the recipient's verdict.
func (c *Client) Acknowledge(ctx context.Context, endpoint string, terminal model.Terminal, ack Ack) error {
	body, err := json.Marshal(ack)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, endpoint, terminal, "/ack", "application/json", body)
	return err
}

// FetchAck returns the recipient's verdict, or ErrNotFound while there is none.
func (c *Client) FetchAck(ctx context.Context, endpoint string, terminal model.Terminal) (Ack, error) {
	body, err := c.do(ctx, http.MethodGet, endpoint, terminal, "/ack", "", nil)
	if err != nil {
		return Ack{}, err
	}
	var ack Ack
	if err := json.Unmarshal(body, &ack); err != nil {
		return Ack{}, fmt.Errorf("decode ack: %w", err)
	}
	return ack, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, terminal model.Terminal, suffix, contentType string, body []byte) ([]byte, error) {
	base, err := BaseURL(endpoint)
	if err != nil {
		return nil, err
	}
	target := base.JoinPath("v1", "consignments", terminal.String()).String() + suffix

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 300:
		var e errorBody
		if json.Unmarshal(payload, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("%w: %d", ErrRejected, resp.StatusCode)
	}
	return payload, nil
}
