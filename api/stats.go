package api

import (
	"net/http"
)

type statsResponse struct {
	Beams         int   `json:"beams"`
	Wormholes     int   `json:"wormholes"`
	Users         int   `json:"users"`
	Messages      int64 `json:"messages"`
	Failures      int64 `json:"failures"`
	LedgerEntries int   `json:"ledger_entries"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	beams, err := h.relay.Beams().List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	wormholes, err := h.relay.Wormholes().List(ctx, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	users, err := h.relay.Users().List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	failures, err := h.relay.Failures().Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var messages int64
	for _, wh := range wormholes {
		messages += wh.Messages
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Beams:         len(beams),
		Wormholes:     len(wormholes),
		Users:         len(users),
		Messages:      messages,
		Failures:      failures,
		LedgerEntries: h.relay.Ledger().Len(),
	})
}
