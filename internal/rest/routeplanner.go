package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

type IPBlock struct {
	Type string `json:"type"`
	Size string `json:"size"`
}

type FailingAddress struct {
	Address     string `json:"address"`
	TimestampMs int64  `json:"failingTimestamp"`
	Time        string `json:"failingTime"`
}

func (f FailingAddress) FailedAt() time.Time {
	return time.UnixMilli(f.TimestampMs)
}

// RoutePlannerDetails is the union of the details of every planner class.
type RoutePlannerDetails struct {
	IPBlock             IPBlock          `json:"ipBlock"`
	FailingAddresses    []FailingAddress `json:"failingAddresses"`
	RotateIndex         string           `json:"rotateIndex,omitempty"`
	IPIndex             string           `json:"ipIndex,omitempty"`
	CurrentAddress      string           `json:"currentAddress,omitempty"`
	CurrentAddressIndex string           `json:"currentAddressIndex,omitempty"`
	BlockIndex          string           `json:"blockIndex,omitempty"`
}

type RoutePlannerStatus struct {
	// Class is empty when the node has no route planner configured.
	Class   string               `json:"class"`
	Details *RoutePlannerDetails `json:"details"`
}

func (s *RoutePlannerStatus) Enabled() bool {
	return s.Class != ""
}

func (c *Client) RoutePlannerStatus(ctx context.Context) (*RoutePlannerStatus, error) {
	var status RoutePlannerStatus
	if err := c.do(ctx, http.MethodGet, "/routeplanner/status", nil, nil, &status); err != nil {
		return nil, fmt.Errorf("failed to get route planner status: %w", err)
	}
	return &status, nil
}

// FreeAddress removes address from the planner's failing list.
func (c *Client) FreeAddress(ctx context.Context, address string) error {
	body := map[string]string{"address": address}
	if err := c.do(ctx, http.MethodPost, "/routeplanner/free/address", nil, body, nil); err != nil {
		return fmt.Errorf("failed to free address %s: %w", address, err)
	}
	return nil
}

// FreeAll clears the planner's failing list.
func (c *Client) FreeAll(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/routeplanner/free/all", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to free all addresses: %w", err)
	}
	return nil
}
