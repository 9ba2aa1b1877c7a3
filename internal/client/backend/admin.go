package backend

import (
	"context"
	"fmt"
	"io"

	ownhttp "github.com/ownafarm/ownafarm-gateway/internal/client/http"
)

// ListFarmers fetches farmer records, optionally filtered by status
// (pending, approved, rejected). Requires an active admin session.
func (c *Client) ListFarmers(ctx context.Context, status string) ([]Farmer, error) {
	auth, err := c.bearer()
	if err != nil {
		return nil, err
	}

	options := []ownhttp.RequestOption{auth}
	if status != "" {
		options = append(options, ownhttp.WithQueryParam("status", status))
	}

	resp, err := c.http.Get(ctx, "/admin/farmers", options...)
	if err != nil {
		return nil, asAPIError(err)
	}

	var list listFarmersResponse
	if err := c.http.ProcessJSONResponse(resp, &list); err != nil {
		return nil, asAPIError(err)
	}
	return list.Data.Farmers, nil
}

// ApproveFarmer marks a farmer record approved. Callers must only invoke
// this after the matching on-chain approval confirmed.
func (c *Client) ApproveFarmer(ctx context.Context, farmerID string) error {
	auth, err := c.bearer()
	if err != nil {
		return err
	}

	resp, err := c.http.Patch(ctx, fmt.Sprintf("/admin/farmers/%s/approve", farmerID), nil, auth)
	if err != nil {
		return asAPIError(err)
	}
	drain(resp.Body)
	return nil
}

// RejectFarmer marks a farmer record rejected with a reason.
func (c *Client) RejectFarmer(ctx context.Context, farmerID, reason string) error {
	auth, err := c.bearer()
	if err != nil {
		return err
	}

	resp, err := c.http.Patch(ctx, fmt.Sprintf("/admin/farmers/%s/reject", farmerID),
		rejectRequest{Reason: reason}, auth)
	if err != nil {
		return asAPIError(err)
	}
	drain(resp.Body)
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
