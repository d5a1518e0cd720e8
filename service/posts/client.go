// Package posts is the outbound HTTP data access layer against the
// JSONPlaceholder demo API.
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

type ApiError struct {
	StatusCode  int
	RawResponse string
}

func (e ApiError) Error() string {
	return fmt.Sprintf("status=%d response=[%s]", e.StatusCode, e.RawResponse)
}

func IsApiError(err error) bool {
	var x ApiError
	return errors.As(err, &x)
}

type Post struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type Client struct {
	httpClient *http.Client
	url        string
}

func NewClient(httpClient *http.Client, url string) *Client {
	return &Client{
		httpClient: httpClient,
		url:        url,
	}
}

// Endpoints lists the post URLs the round-robin selection cycles through.
func (c *Client) Endpoints(n int) []string {
	endpoints := make([]string, n)
	for i := range endpoints {
		endpoints[i] = fmt.Sprintf("%s/posts/%d", c.url, i+1)
	}

	return endpoints
}

// FetchPost retrieves one post from the given endpoint URL and returns it
// together with the response status code.
func (c *Client) FetchPost(ctx context.Context, endpoint string) (Post, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Post{}, 0, fmt.Errorf("failed to construct request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Post{}, 0, fmt.Errorf("posts request failed: %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		apiErr := ApiError{
			StatusCode:  res.StatusCode,
			RawResponse: "",
		}

		b, err := io.ReadAll(res.Body)
		if err == nil {
			apiErr.RawResponse = string(b)
			return Post{}, res.StatusCode, apiErr
		}

		return Post{}, res.StatusCode, errors.Join(apiErr, err)
	}

	var post Post
	if err := json.NewDecoder(res.Body).Decode(&post); err != nil {
		return Post{}, res.StatusCode, err
	}

	return post, res.StatusCode, nil
}
