package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyqtest-server-go/apierr"
)

func TestCompareMathAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compare-math-answers", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req compareRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0.5", req.UserAnswer)
		assert.Equal(t, `\frac{1}{2}`, req.CorrectAnswer)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"isEquivalent":true,"reasoning":"0.5 = 1/2"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret", time.Second, nil)
	ok, err := c.CompareMathAnswers(context.Background(), "0.5", `\frac{1}{2}`, "Evaluate")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract-pyq-questions", r.URL.Path)
		io.WriteString(w, `{"questions":[{"number":"Q.1","kind":"single","text":"2+2?","options":["3","4"],"answer":"B"}]}`)
	}))
	defer srv.Close()

	qs, err := NewClient(srv.URL, "", time.Second, nil).ExtractQuestions(context.Background(), "paper text", 1)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Q.1", qs[0].Number)
	assert.Equal(t, []string{"3", "4"}, qs[0].Options)
}

func TestCallNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second, nil).CompareMathAnswers(context.Background(), "1", "2", "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
	assert.Equal(t, "rate limited", statusErr.Body)
}

func TestCallEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second, nil).ExtractQuestions(context.Background(), "x", 0)
	assert.ErrorContains(t, err, "empty response body")
}

func TestNilClientIsUnavailable(t *testing.T) {
	var c *Client
	_, err := c.CompareMathAnswers(context.Background(), "1", "1", "")
	assert.ErrorIs(t, err, apierr.ErrRemoteUnavailable)

	_, err = NewClient("", "", time.Second, nil).ExtractQuestions(context.Background(), "x", 0)
	assert.ErrorIs(t, err, apierr.ErrRemoteUnavailable)
}
