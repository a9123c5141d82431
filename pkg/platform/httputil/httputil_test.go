package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "scoring/pkg/domain-errors"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteResponse(t *testing.T) {
	w := httptest.NewRecorder()
	WriteResponse(w, map[string]any{"score": 3.5})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"response": {"score": 3.5}, "code": 200}`, w.Body.String())
}

func TestWriteResponse_EmptyPayloadKeepsResponseKey(t *testing.T) {
	w := httptest.NewRecorder()
	WriteResponse(w, map[string]any{})
	assert.JSONEq(t, `{"response": {}, "code": 200}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation exposes message", dErrors.New(dErrors.CodeValidation, "No required pair"), 422, "No required pair"},
		{"validation without message", dErrors.New(dErrors.CodeValidation, ""), 422, "Invalid Request"},
		{"forbidden hides message", dErrors.New(dErrors.CodeForbidden, "bad token for admin"), 403, "Forbidden"},
		{"not found", dErrors.New(dErrors.CodeNotFound, ""), 404, "Not Found"},
		{"bad request", dErrors.New(dErrors.CodeBadRequest, ""), 400, "Bad Request"},
		{"internal hides cause", &dErrors.Error{Code: dErrors.CodeInternal, Err: fmt.Errorf("redis: connection refused")}, 500, "Internal Server Error"},
		{"plain error", fmt.Errorf("boom"), 500, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			body := decodeEnvelope(t, w)
			assert.Equal(t, tt.msg, body["error"])
			assert.Equal(t, float64(tt.status), body["code"])
			assert.NotContains(t, body, "response")
		})
	}
}

func TestDecodeDocument(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("object", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/method/", strings.NewReader(`{"login": "h&f", "arguments": {"gender": 1}}`))
		w := httptest.NewRecorder()

		doc, ok := DecodeDocument(w, req, logger, ctx, "req-1")
		require.True(t, ok)
		assert.Equal(t, "h&f", doc["login"])
		assert.Equal(t, json.Number("1"), doc["arguments"].(map[string]any)["gender"])
	})

	for name, body := range map[string]string{
		"invalid json":  `{invalid`,
		"empty body":    ``,
		"array":         `[1, 2]`,
		"trailing data": `{} {}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/method/", strings.NewReader(body))
			w := httptest.NewRecorder()

			doc, ok := DecodeDocument(w, req, logger, ctx, "req-1")
			assert.False(t, ok)
			assert.Nil(t, doc)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error": "Bad Request", "code": 400}`, w.Body.String())
		})
	}

	t.Run("body over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/method/", bytes.NewBufferString(`{"login": "`+strings.Repeat("x", 64)+`"}`))
		w := httptest.NewRecorder()
		req.Body = http.MaxBytesReader(w, req.Body, 16)

		_, ok := DecodeDocument(w, req, logger, ctx, "req-1")
		assert.False(t, ok)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}
