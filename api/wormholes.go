package api

import (
	"fmt"
	"net/http"
)

type addWormholeRequest struct {
	Beam      string `json:"beam"`
	ChannelID string `json:"channel_id"`
}

func (h *Handler) addWormhole(w http.ResponseWriter, r *http.Request) {
	var req addWormholeRequest
	if !h.decodeBody(w, r, "wormhole", &req) {
		return
	}

	wh, err := h.relay.Wormholes().Add(r.Context(), req.Beam, req.ChannelID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(r.Context(), wh.Beam, fmt.Sprintf("A new wormhole opened into **%s**.", wh.Beam))
	writeJSON(w, http.StatusCreated, wh)
}

func (h *Handler) listWormholes(w http.ResponseWriter, r *http.Request) {
	list, err := h.relay.Wormholes().List(r.Context(), queryParam(r, "beam"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getWormhole(w http.ResponseWriter, r *http.Request) {
	wh, err := h.relay.Wormholes().Get(r.Context(), r.PathValue("channel"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wh)
}

func (h *Handler) setWormhole(w http.ResponseWriter, r *http.Request) {
	var req attributeRequest
	if !h.decodeBody(w, r, "attribute", &req) {
		return
	}

	wh, err := h.relay.Wormholes().Set(r.Context(), r.PathValue("channel"), req.Key, req.Value)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(r.Context(), wh.Beam, fmt.Sprintf("A wormhole in **%s** was updated: %s = %s", wh.Beam, req.Key, req.Value))
	writeJSON(w, http.StatusOK, wh)
}

func (h *Handler) removeWormhole(w http.ResponseWriter, r *http.Request) {
	wh, err := h.relay.Wormholes().Remove(r.Context(), r.PathValue("channel"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.notify(r.Context(), wh.Beam, fmt.Sprintf("A wormhole closed in **%s**.", wh.Beam))
	w.WriteHeader(http.StatusNoContent)
}
