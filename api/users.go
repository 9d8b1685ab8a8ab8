package api

import (
	"net/http"
	"strconv"
)

type addUserRequest struct {
	AccountID int64  `json:"account_id"`
	Nickname  string `json:"nickname"`
	HomeID    string `json:"home_id"`
}

func accountParam(r *http.Request) (int64, bool) {
	n, err := strconv.ParseInt(r.PathValue("account"), 10, 64)
	return n, err == nil
}

func (h *Handler) addUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if !h.decodeBody(w, r, "user", &req) {
		return
	}

	u, err := h.relay.Users().Add(r.Context(), req.AccountID, req.Nickname, req.HomeID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.relay.Users().List(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account ID")
		return
	}

	u, err := h.relay.Users().Get(r.Context(), accountID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) setUser(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account ID")
		return
	}

	var req attributeRequest
	if !h.decodeBody(w, r, "attribute", &req) {
		return
	}

	u, err := h.relay.Users().Set(r.Context(), req.Actor, accountID, req.Key, req.Value)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) removeUser(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid account ID")
		return
	}
	actor, err := strconv.ParseInt(queryParam(r, "actor"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "actor query parameter is required")
		return
	}

	if err := h.relay.Users().Remove(r.Context(), actor, accountID); err != nil {
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
