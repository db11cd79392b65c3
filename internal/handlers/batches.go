package handlers

import (
	"net/http"
	"strings"

	"github.com/ventortech/merpwms/internal/middleware"
	"github.com/ventortech/merpwms/internal/wave"
)

// createBatch creates a picking batch
func (r *Router) createBatch(w http.ResponseWriter, req *http.Request) {
	var in wave.BatchInput
	if err := decodeJSON(req, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if in.UserID == nil {
		if c, ok := middleware.ClaimsFrom(req.Context()); ok {
			in.UserID = &c.UserID
		}
	}

	batch, err := r.Batches.CreateBatch(req.Context(), in)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, batch)
}

// getBatch returns a batch with its pickings
func (r *Router) getBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}
	batch, err := r.Batches.Batch(req.Context(), id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// writeBatch applies a partial update to a batch
func (r *Router) writeBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}
	var patch wave.BatchPatch
	if err := decodeJSON(req, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	batch, err := r.Batches.WriteBatch(req.Context(), id, patch)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// getWaveType returns the picking type shared by the batch members
func (r *Router) getWaveType(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}
	typeID, err := r.Batches.WaveType(req.Context(), id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batch_id":          id,
		"picking_wave_type": typeID,
	})
}

// confirmBatch confirms and reserves every picking of a draft batch
func (r *Router) confirmBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}
	batch, err := r.Batches.ConfirmPicking(req.Context(), id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, batch)
}

// doneBatch validates the pickings of a batch
func (r *Router) doneBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch id")
		return
	}
	res, err := r.Batches.Done(req.Context(), id)
	if err != nil {
		r.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
