package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lexcodex/codebuddy/framework"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestClientGenerate(t *testing.T) {
	client := NewClient("http://fake", "test")
	client.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) *http.Response {
			assert.Equal(t, "/api/generate", req.URL.Path)
			var payload map[string]interface{}
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			assert.Equal(t, "hello", payload["prompt"])
			assert.Equal(t, false, payload["stream"])
			assert.Equal(t, "test", payload["model"])
			return jsonResponse(200, `{"response":"read_file(filepath=\"a.py\")","done_reason":"stop","eval_count":7,"prompt_eval_count":3}`)
		}),
	}

	resp, err := client.Generate(context.Background(), "hello", &framework.LLMOptions{})
	require.NoError(t, err)
	assert.Equal(t, `read_file(filepath="a.py")`, resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, map[string]int{"completion_tokens": 7, "prompt_tokens": 3}, resp.Usage)
}

func TestClientGenerateOptions(t *testing.T) {
	client := NewClient("http://fake/", "base")
	client.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) *http.Response {
			assert.Equal(t, "/api/generate", req.URL.Path)
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
			assert.Equal(t, "override", payload["model"])
			opts, ok := payload["options"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, 0.1, opts["temperature"])
			assert.Equal(t, float64(256), opts["num_predict"])
			return jsonResponse(200, `{"message":{"role":"assistant","content":"hi"}}`)
		}),
	}
	resp, err := client.Generate(context.Background(), "p", &framework.LLMOptions{Model: "override", Temperature: 0.1, MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
}

func TestClientGenerateHTTPError(t *testing.T) {
	client := NewClient("http://fake", "m")
	client.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) *http.Response {
			return jsonResponse(500, `model not loaded`)
		}),
	}
	_, err := client.Generate(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestClientPing(t *testing.T) {
	client := NewClient("http://fake", "m")
	client.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) *http.Response {
			assert.Equal(t, "/api/tags", req.URL.Path)
			assert.Equal(t, http.MethodGet, req.Method)
			return jsonResponse(200, `{"models":[]}`)
		}),
	}
	assert.NoError(t, client.Ping(context.Background()))
}
