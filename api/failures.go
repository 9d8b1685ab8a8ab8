package api

import (
	"net/http"

	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/id"
)

type purgeResponse struct {
	Purged int64 `json:"purged"`
}

func (h *Handler) listFailures(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from time")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to time")
		return
	}

	opts := failure.ListOpts{
		Offset:    queryInt(r, "offset", 0),
		Limit:     queryInt(r, "limit", 50),
		Beam:      queryParam(r, "beam"),
		ChannelID: queryParam(r, "channel_id"),
		From:      from,
		To:        to,
	}

	entries, err := h.relay.Failures().List(r.Context(), opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) getFailure(w http.ResponseWriter, r *http.Request) {
	failureID, err := id.ParseFailureID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid failure ID")
		return
	}

	entry, err := h.relay.Failures().Get(r.Context(), failureID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) purgeFailures(w http.ResponseWriter, r *http.Request) {
	before, err := queryTime(r, "before")
	if err != nil || before == nil {
		writeError(w, http.StatusBadRequest, "before query parameter must be an RFC 3339 time")
		return
	}

	n, err := h.relay.Failures().Purge(r.Context(), *before)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, purgeResponse{Purged: n})
}
