package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/heartmarshall/labsim/internal/blob"
)

type blobReader interface {
	Get(ctx context.Context, key string) (blob.Object, error)
}

// BlobHandler serves stored objects for drivers without their own public
// endpoint (the in-memory driver used by the emulator).
type BlobHandler struct {
	blobs blobReader
	log   *slog.Logger
}

// NewBlobHandler creates a BlobHandler.
func NewBlobHandler(blobs blobReader, log *slog.Logger) *BlobHandler {
	return &BlobHandler{blobs: blobs, log: log}
}

func (h *BlobHandler) Get(w http.ResponseWriter, r *http.Request) {
	obj, err := h.blobs.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data) //nolint:errcheck
}
