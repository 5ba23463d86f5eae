package client

import (
	"context"
	"net/http"
)

// Account describes the owner of the API key.
type Account struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	FirstName          string   `json:"firstName,omitempty"`
	LastName           string   `json:"lastName,omitempty"`
	Organization       string   `json:"organizationName,omitempty"`
	BudgetAmount       *float64 `json:"budgetAmount,omitempty"`
	CurrentBudgetUsage *float64 `json:"currentBudgetUsage,omitempty"`
	IsDemoAccount      bool     `json:"isDemoAccount,omitempty"`
}

// Health pings the platform API. It is never cached.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, request{
		operation: "health",
		method:    http.MethodGet,
		endpoint:  "ping",
	}, nil)
}

// WhoAmI returns the account the API key belongs to.
func (c *Client) WhoAmI(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.do(ctx, request{
		operation: "whoami",
		method:    http.MethodGet,
		endpoint:  "auth/whoami",
	}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
