package feed

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"pitwall/internal/strategy"
)

// Client publishes decided strategies to the upstream race-control
// endpoint so the pit-wall dashboard sees them.
type Client struct {
	url  string
	rest *resty.Client
}

// NewClient creates a REST publisher. A zero timeout falls back to 5s.
func NewClient(url string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	return &Client{url: url, rest: r}
}

type publishReq struct {
	CarID    string `json:"car_id"`
	Decision string `json:"decision"`
}

type publishResp struct {
	Error string `json:"error"`
}

// PublishDecision posts one car's decision upstream.
func (c *Client) PublishDecision(carID string, decision strategy.Decision) error {
	resp := &publishResp{}
	r, err := c.rest.R().
		SetBody(publishReq{CarID: carID, Decision: string(decision)}).
		SetResult(resp).
		SetError(resp).
		Post(c.url)
	if err != nil {
		return err
	}
	if r.IsError() {
		if resp.Error != "" {
			return fmt.Errorf("publish: %s (status %d)", resp.Error, r.StatusCode())
		}
		return fmt.Errorf("publish: status %d", r.StatusCode())
	}
	return nil
}
