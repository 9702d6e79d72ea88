package extraction

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Extract_ReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/html", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "<html>hi</html>", string(body))
		w.Write([]byte(`{"content":"hi"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	text, err := c.Extract(context.Background(), []byte("<html>hi</html>"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func TestClient_Extract_EmptyContentIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	text, err := c.Extract(context.Background(), []byte("raw"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestClient_Extract_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Extract(context.Background(), []byte("raw"), "")
	require.Error(t, err)
}
