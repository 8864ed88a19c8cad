package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"quietwire/internal/domain"
)

// publishRequest is the body of POST /devices/{id}/bundle: the public
// bundle plus the full one-time pool the directory will hand out.
type publishRequest struct {
	Bundle  domain.PreKeyBundle    `json:"bundle"`
	OneTime []domain.OneTimePreKey `json:"one_time,omitempty"`
}

// ackRequest is the body of POST /messages/{user}/ack.
type ackRequest struct {
	Count int `json:"count"`
}

// HTTP is a RelayClient over HTTP.
type HTTP struct {
	Base   string
	client *http.Client
}

// NewHTTP constructs a new HTTP relay client.
// If client is nil, http.DefaultClient will be used.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, client: client}
}

var _ domain.RelayClient = (*HTTP)(nil)

// PublishBundle uploads the device's bundle and one-time pool via
// POST /devices/{id}/bundle.
func (c *HTTP) PublishBundle(ctx context.Context, deviceID string, b domain.PreKeyBundle, oneTime []domain.OneTimePreKey) error {
	body := publishRequest{Bundle: b, OneTime: oneTime}
	return c.post(ctx, "/devices/"+url.PathEscape(deviceID)+"/bundle", body, nil)
}

// FetchBundle retrieves one bundle for userID via
// GET /users/{id}/prekey-bundle. The directory consumes the handed-out
// one-time prekey atomically.
func (c *HTTP) FetchBundle(ctx context.Context, userID string) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(userID)+"/prekey-bundle", &out); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return out, nil
}

// Send posts one opaque envelope to POST /messages/{to}.
func (c *HTTP) Send(ctx context.Context, msg domain.RelayMessage) error {
	return c.post(ctx, "/messages/"+url.PathEscape(msg.To), msg, nil)
}

// Fetch GETs up to limit queued messages from /messages/{user}?limit=N.
func (c *HTTP) Fetch(ctx context.Context, userID string, limit int) ([]domain.RelayMessage, error) {
	path := "/messages/" + url.PathEscape(userID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var msgs []domain.RelayMessage
	if err := c.getJSON(ctx, path, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Ack acknowledges the first count queued messages via
// POST /messages/{user}/ack.
func (c *HTTP) Ack(ctx context.Context, userID string, count int) error {
	return c.post(ctx, "/messages/"+url.PathEscape(userID)+"/ack", ackRequest{Count: count}, nil)
}

// post is a helper for JSON-encoding a POST to path.
func (c *HTTP) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// getJSON performs a GET and JSON-decodes the response into out.
func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
