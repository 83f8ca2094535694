package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"snapfolio/pkg/snapfolio"
)

// maxUploadBytes caps one multipart parse request.
const maxUploadBytes = 32 << 20

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) parseStatements(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErrorResponse(w, http.StatusBadRequest,
			snapfolio.WrapError(snapfolio.ErrCodeValidation, "invalid multipart form", err))
		return
	}

	files := r.MultipartForm.File["files"]
	documents := make([]snapfolio.Document, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest,
				snapfolio.WrapError(snapfolio.ErrCodeValidation, "open uploaded file "+header.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest,
				snapfolio.WrapError(snapfolio.ErrCodeValidation, "read uploaded file "+header.Filename, err))
			return
		}
		documents = append(documents, snapfolio.Document{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
			UploadedAt:  time.Now(),
		})
	}

	result, err := h.core.Parse(r.Context(), snapfolio.ParseRequest{
		UserID:    userID(r),
		Documents: documents,
	})
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, result)
}

func (h *handler) createReviewSession(w http.ResponseWriter, r *http.Request) {
	var payload createReviewSessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest,
			snapfolio.WrapError(snapfolio.ErrCodeValidation, "invalid request body", err))
		return
	}

	sessionID, err := h.core.CreateReviewSession(snapfolio.CreateSessionRequest{
		UserID:                  userID(r),
		Assets:                  payload.Assets,
		FileNames:               payload.FileNames,
		StatementDate:           payload.StatementDate,
		StatementDateConfidence: payload.StatementDateConfidence,
		StatementDateSource:     payload.StatementDateSource,
		SuggestedSnapshotName:   payload.SuggestedSnapshotName,
		MatchedSnapshotID:       payload.MatchedSnapshotID,
		MergeDecision:           payload.MergeDecision,
	})
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, map[string]string{"session_id": sessionID})
}

func (h *handler) getReviewSession(w http.ResponseWriter, r *http.Request) {
	session, assets, err := h.core.GetReviewSession(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, reviewSessionResponse{Session: session, Assets: assets})
}

func (h *handler) updateReviewSession(w http.ResponseWriter, r *http.Request) {
	var payload updateReviewSessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest,
			snapfolio.WrapError(snapfolio.ErrCodeValidation, "invalid request body", err))
		return
	}

	updated, err := h.core.UpdateReviewSession(userID(r), chi.URLParam(r, "id"), payload.Edits)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, map[string]int{"updated_count": updated})
}

func (h *handler) finalizeReviewSession(w http.ResponseWriter, r *http.Request) {
	var payload snapfolio.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest,
			snapfolio.WrapError(snapfolio.ErrCodeValidation, "invalid request body", err))
		return
	}

	result, err := h.core.Finalize(r.Context(), userID(r), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, result)
}

func (h *handler) cancelReviewSession(w http.ResponseWriter, r *http.Request) {
	if err := h.core.Cancel(userID(r), chi.URLParam(r, "id")); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccessWithMessage(w, "session cancelled", nil)
}

func (h *handler) listSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest,
				snapfolio.NewError(snapfolio.ErrCodeValidation, "invalid limit: "+raw))
			return
		}
		limit = parsed
	}

	snapshots, err := h.core.ListSnapshots(userID(r), limit)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, snapshots)
}

func (h *handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, assets, err := h.core.GetSnapshot(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, map[string]any{"snapshot": snapshot, "assets": assets})
}

func (h *handler) deleteSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.core.DeleteSnapshot(userID(r), chi.URLParam(r, "id")); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccessWithMessage(w, "snapshot deleted", nil)
}

func (h *handler) getTaxonomy(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.core.GetTaxonomy()
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, pairs)
}

func (h *handler) addTaxonomyPair(w http.ResponseWriter, r *http.Request) {
	var payload addTaxonomyPairPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest,
			snapfolio.WrapError(snapfolio.ErrCodeValidation, "invalid request body", err))
		return
	}

	id, err := h.core.AddTaxonomyPair(payload.AssetClass, payload.AssetSubclass)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccess(w, map[string]int64{"id": id})
}

func (h *handler) setTaxonomyPairActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest,
			snapfolio.NewError(snapfolio.ErrCodeValidation, "invalid taxonomy id"))
		return
	}

	var payload setTaxonomyActivePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorResponse(w, http.StatusBadRequest,
			snapfolio.WrapError(snapfolio.ErrCodeValidation, "invalid request body", err))
		return
	}

	if err := h.core.SetTaxonomyPairActive(id, payload.Active); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	writeSuccessWithMessage(w, "taxonomy pair updated", nil)
}
