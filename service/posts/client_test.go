package posts

import (
	"context"
	"github.com/lumigo-io/lambda-telemetry-demo/internal/test"
	"github.com/lumigo-io/lambda-telemetry-demo/service"
	"github.com/stretchr/testify/assert"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEndpoints(t *testing.T) {
	c := NewClient(http.DefaultClient, DefaultBaseURL)

	endpoints := c.Endpoints(3)

	assert.Equal(t, []string{
		"https://jsonplaceholder.typicode.com/posts/1",
		"https://jsonplaceholder.typicode.com/posts/2",
		"https://jsonplaceholder.typicode.com/posts/3",
	}, endpoints)
}

func TestFetchPost(t *testing.T) {
	s := httptest.NewServer(test.SamplePostHandler())
	defer s.Close()

	c := NewClient(s.Client(), s.URL)

	post, statusCode, err := c.FetchPost(context.Background(), s.URL+"/posts/1")

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, Post{ID: 1, UserID: 7, Title: "hello", Body: "world"}, post)
}

func TestFetchPostNon200(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer s.Close()

	c := NewClient(s.Client(), s.URL)

	_, statusCode, err := c.FetchPost(context.Background(), s.URL+"/posts/1")

	assert.Equal(t, http.StatusServiceUnavailable, statusCode)
	assert.True(t, IsApiError(err))

	var apiErr ApiError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Contains(t, apiErr.RawResponse, "nope")
	}
}

func TestDALRun(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 2, "userId": 7, "title": "second post", "body": "content"}`))
	}))
	defer s.Close()

	c := NewClient(s.Client(), s.URL)
	endpoints := c.Endpoints(3)

	dal := NewDAL(c, service.Selection{
		Candidates: endpoints,
		Selected:   endpoints[1],
		Index:      1,
	})

	res, err := dal.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, endpoints[1], res.EndpointUsed)
	assert.Equal(t, 2, res.PostID)
	assert.Equal(t, "second post", res.PostTitle)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
