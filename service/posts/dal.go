package posts

import (
	"context"
	"github.com/lumigo-io/lambda-telemetry-demo/service"
	"github.com/lumigo-io/lambda-telemetry-demo/telemetry"
)

type Result struct {
	EndpointUsed string `json:"endpoint_used"`
	PostID       int    `json:"post_id"`
	PostTitle    string `json:"post_title"`
	StatusCode   int    `json:"status_code"`
}

type DAL struct {
	client *Client
	sel    service.Selection
}

func NewDAL(client *Client, sel service.Selection) *DAL {
	return &DAL{
		client: client,
		sel:    sel,
	}
}

func (d *DAL) Endpoint() string {
	return d.sel.Selected
}

// Run fetches one post from the selected endpoint.
func (d *DAL) Run(ctx context.Context) (Result, error) {
	telemetry.SetExecutionTag(ctx, "api_url", d.Endpoint())

	type fetched struct {
		post       Post
		statusCode int
	}

	out, err := service.ObserveValue(ctx, "api_fetch_post", d.Endpoint(), func(ctx context.Context) (fetched, error) {
		post, code, err := d.client.FetchPost(ctx, d.Endpoint())
		return fetched{post: post, statusCode: code}, err
	})

	if err != nil {
		return Result{}, err
	}

	return Result{
		EndpointUsed: d.Endpoint(),
		PostID:       out.post.ID,
		PostTitle:    out.post.Title,
		StatusCode:   out.statusCode,
	}, nil
}
