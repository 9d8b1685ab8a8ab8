package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/message"
	"github.com/xraph/wormhole/signature"
)

type bodyKey struct{}

type editRequest struct {
	Content   string `json:"content"`
	AuthorID  int64  `json:"author_id"`
	GuildName string `json:"guild_name"`
}

type acceptedResponse struct {
	Kind      wormhole.EventKind `json:"kind"`
	ChannelID string             `json:"channel_id"`
	MessageID string             `json:"message_id"`
}

// verified reads the request body and, when a secret is configured, checks
// its signature before calling next. The body is passed on in the context.
func (h *Handler) verified(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable request body")
			return
		}
		if h.config.Secret != "" {
			if err := signature.VerifyRequest(r, body, h.config.Secret, h.config.Tolerance, h.now()); err != nil {
				h.logger.WarnContext(r.Context(), "ingress signature rejected",
					"path", r.URL.Path,
					"error", err,
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}
		next(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, body)))
	})
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var msg message.Message
	if !h.decodeBody(w, r, "message", &msg) {
		return
	}
	h.submit(w, r, wormhole.Event{Kind: wormhole.EventMessage, Message: msg})
}

func (h *Handler) editMessage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !h.decodeBody(w, r, "edit", &req) {
		return
	}
	h.submit(w, r, wormhole.Event{
		Kind: wormhole.EventEdit,
		Message: message.Message{
			ID:        r.PathValue("id"),
			ChannelID: r.PathValue("channel"),
			AuthorID:  req.AuthorID,
			GuildName: req.GuildName,
			Content:   req.Content,
		},
	})
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, wormhole.Event{
		Kind: wormhole.EventDelete,
		Message: message.Message{
			ID:        r.PathValue("id"),
			ChannelID: r.PathValue("channel"),
		},
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, evt wormhole.Event) {
	if err := h.relay.Submit(r.Context(), evt); err != nil {
		switch {
		case errors.Is(err, wormhole.ErrInvalidEvent):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, wormhole.ErrNotRunning):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusServiceUnavailable, "event not queued")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, acceptedResponse{
		Kind:      evt.Kind,
		ChannelID: evt.Message.ChannelID,
		MessageID: evt.Message.ID,
	})
}
