package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "raw_object_unchanged",
			input:    `{"a":1}`,
			expected: `{"a":1}`,
		},
		{
			name:     "json_fence",
			input:    "```json\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "bare_fence_with_padding",
			input:    "  \n```\n{\"a\":1}\n```  \n",
			expected: `{"a":1}`,
		},
		{
			name:     "single_line_fence",
			input:    "```json {\"a\":1}```",
			expected: `{"a":1}`,
		},
		{
			name:     "inline_fence_after_chatter",
			input:    "Here you go:\n```json\n{\"a\":1}\n```",
			expected: "Here you go:\n\n{\"a\":1}",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CleanJSON(tc.input))
		})
	}
}

func TestJSONObject(t *testing.T) {
	obj, ok := JSONObject("Sure! {\"a\":{\"b\":2}} Hope this helps.")
	require.True(t, ok)
	assert.Equal(t, `{"a":{"b":2}}`, obj)

	_, ok = JSONObject("no braces here")
	assert.False(t, ok)
}

func TestLimitStr(t *testing.T) {
	assert.Equal(t, "abc", LimitStr("abc", 5))
	assert.Equal(t, "ab...", LimitStr("abcdef", 2))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
}

func TestSSEWriter(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	w, err := NewSSEWriter(c)
	require.NoError(t, err)

	require.NoError(t, w.Event("status", "line one\nline two"))
	require.NoError(t, w.Event("data", map[string]int{"n": 1}))
	w.Close()
	require.NoError(t, w.Event("status", "ignored after close"))

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: status\ndata: line one\ndata: line two\n\n")
	assert.Contains(t, body, "event: data\ndata: {\"n\":1}\n\n")
	assert.Contains(t, body, "event: close\ndata: null\n\n")
	assert.NotContains(t, body, "ignored after close")
}
