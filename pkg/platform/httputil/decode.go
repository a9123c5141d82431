package httputil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "scoring/pkg/domain-errors"
	"scoring/pkg/schema"
)

// DecodeDocument reads the request body as a JSON object.
// Returns the document and true on success.
// On failure, writes a 400 envelope and returns nil, false.
//
// Usage:
//
//	doc, ok := httputil.DecodeDocument(w, r, h.logger, ctx, requestID)
//	if !ok {
//	    return
//	}
func DecodeDocument(w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (schema.Document, bool) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.WarnContext(ctx, "request body too large",
				"limit", tooLarge.Limit,
				"request_id", requestID,
			)
			WriteStatus(w, http.StatusRequestEntityTooLarge)
			return nil, false
		}
		logger.WarnContext(ctx, "failed to read request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, ""))
		return nil, false
	}

	doc, err := schema.DecodeDocument(bytes.NewReader(raw))
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, ""))
		return nil, false
	}
	return doc, true
}
