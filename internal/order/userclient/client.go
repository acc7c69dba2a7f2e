// Package userclient is the HTTP probe Create-Order uses to confirm the
// owning user exists and is Active (spec.md §4.4/§9). It replaces the
// teacher's gRPC inventory client with a net/http client, since spec.md
// calls for a synchronous read-only HTTP probe rather than gRPC.
package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ordersync/platform/pkg/platformerrors"
	"github.com/ordersync/platform/pkg/tracing"
)

// Client probes the peer user-service's GET /api/users/{id} endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New builds a Client. timeout bounds each probe so a stalled peer can't
// hang Create-Order indefinitely.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type userResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// IsActiveUser implements application.UserClient.
func (c *Client) IsActiveUser(ctx context.Context, userID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users/"+userID, nil)
	if err != nil {
		return false, platformerrors.Wrap(platformerrors.ErrInternal, "build user probe request: "+err.Error())
	}
	tracing.InjectHTTPHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return false, platformerrors.ErrCancelled
		}
		return false, platformerrors.Wrap(platformerrors.ErrTransient, "user-service unreachable: "+err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, platformerrors.Wrap(platformerrors.ErrValidation, "user does not exist")
	case resp.StatusCode >= 500:
		return false, platformerrors.Wrap(platformerrors.ErrTransient, "user-service returned server error")
	case resp.StatusCode != http.StatusOK:
		return false, platformerrors.Wrap(platformerrors.ErrTransient, "user-service returned unexpected status")
	}

	var body userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, platformerrors.Wrap(platformerrors.ErrTransient, "decode user-service response: "+err.Error())
	}

	return body.Status == "active", nil
}
