package razorpay

import (
	"context"
	"fmt"
	"strings"
	"time"

	rzpsdk "github.com/razorpay/razorpay-go"
)

type Config struct {
	KeyID        string
	KeySecret    string
	OrderTimeout time.Duration
}

// Client wraps the official SDK behind an explicitly constructed value so it
// can be injected instead of shared as a package-level singleton.
type Client struct {
	api     *rzpsdk.Client
	timeout time.Duration
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, fmt.Errorf("razorpay key id and secret are required")
	}

	timeout := cfg.OrderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		api:     rzpsdk.NewClient(cfg.KeyID, cfg.KeySecret),
		timeout: timeout,
	}, nil
}

// CreateOrder registers an order with the gateway. The SDK call does not take
// a context, so it runs on its own goroutine and the result is abandoned if
// ctx or the configured timeout expires first.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]interface{}) (Order, error) {
	if c == nil || c.api == nil {
		return Order{}, fmt.Errorf("razorpay client is nil")
	}
	if amount <= 0 {
		return Order{}, fmt.Errorf("order amount must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	type orderResult struct {
		body map[string]interface{}
		err  error
	}
	resultCh := make(chan orderResult, 1)

	go func() {
		body, err := c.api.Order.Create(data, nil)
		resultCh <- orderResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return Order{}, fmt.Errorf("create gateway order: %w", ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return Order{}, fmt.Errorf("create gateway order: %w", res.err)
		}
		return orderFromBody(res.body)
	}
}

func orderFromBody(body map[string]interface{}) (Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return Order{}, fmt.Errorf("gateway order response missing id")
	}

	order := Order{ID: id}
	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = int64(amount)
	case int64:
		order.Amount = amount
	case int:
		order.Amount = int64(amount)
	}
	order.Currency, _ = body["currency"].(string)

	return order, nil
}
