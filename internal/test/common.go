package test

import (
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"net/http"
	"testing"
)

// SamplePostHandler serves one canned JSONPlaceholder-style post, for tests
// that need a healthy outbound HTTP collaborator.
func SamplePostHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 1, "userId": 7, "title": "hello", "body": "world"}`))
	})
}

func NewUUID(t testing.TB) uuid.UUID {
	v, err := uuid.NewV4()
	if assert.NoError(t, err) {
		return v
	}

	panic("invalid state")
}
