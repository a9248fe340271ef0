// Package assess is the synchronous counterpart to the batch pipeline: a
// thin client for a local grading service, usable for one-off assessments.
package assess

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

type Request struct {
	GradingCriteria string `json:"grading_criteria"`
	TaskSubmitted   string `json:"task_submitted"`
}

type Response struct {
	Feedback string  `json:"feedback"`
	Grade    float64 `json:"grade"`
}

type Client struct {
	client *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{client: resty.New().SetBaseURL(baseURL)}
}

func (c *Client) Grade(ctx context.Context, req Request) (Response, error) {
	var out Response
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/grade")
	if err != nil {
		return Response{}, fmt.Errorf("error calling assessment service: %w", err)
	}
	if res.IsError() {
		return Response{}, fmt.Errorf("assessment service returned %s", res.Status())
	}
	return out, nil
}
