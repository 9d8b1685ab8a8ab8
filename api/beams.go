package api

import (
	"context"
	"fmt"
	"net/http"
)

type createBeamRequest struct {
	Name    string `json:"name"`
	AdminID int64  `json:"admin_id"`
}

type attributeRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Actor int64  `json:"actor"`
}

type announceRequest struct {
	Text string `json:"text"`
}

type announceResponse struct {
	Delivered int `json:"delivered"`
}

func (h *Handler) createBeam(w http.ResponseWriter, r *http.Request) {
	var req createBeamRequest
	if !h.decodeBody(w, r, "beam", &req) {
		return
	}

	b, err := h.relay.Beams().Create(r.Context(), req.Name, req.AdminID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) listBeams(w http.ResponseWriter, r *http.Request) {
	beams, err := h.relay.Beams().List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, beams)
}

func (h *Handler) getBeam(w http.ResponseWriter, r *http.Request) {
	b, err := h.relay.Beams().Get(r.Context(), r.PathValue("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) setBeam(w http.ResponseWriter, r *http.Request) {
	var req attributeRequest
	if !h.decodeBody(w, r, "attribute", &req) {
		return
	}

	b, err := h.relay.Beams().Set(r.Context(), r.PathValue("name"), req.Key, req.Value)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(r.Context(), b.Name, fmt.Sprintf("Beam **%s** updated: %s = %s", b.Name, req.Key, req.Value))
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) openBeam(w http.ResponseWriter, r *http.Request) {
	b, err := h.relay.Beams().Open(r.Context(), r.PathValue("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(r.Context(), b.Name, fmt.Sprintf("Beam **%s** is open.", b.Name))
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) closeBeam(w http.ResponseWriter, r *http.Request) {
	b, err := h.relay.Beams().Close(r.Context(), r.PathValue("name"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(r.Context(), b.Name, fmt.Sprintf("Beam **%s** is closed.", b.Name))
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) announce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if !h.decodeBody(w, r, "announce", &req) {
		return
	}

	n, err := h.relay.Announce(r.Context(), r.PathValue("name"), req.Text)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, announceResponse{Delivered: n})
}

// notify announces an admin change to a beam when announcements are enabled.
func (h *Handler) notify(ctx context.Context, beamName, text string) {
	if !h.config.Announce {
		return
	}
	if _, err := h.relay.Announce(ctx, beamName, text); err != nil {
		h.logger.WarnContext(ctx, "admin announcement failed", "beam", beamName, "error", err)
	}
}
