package api

import (
	"errors"
	"net/http"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/user"
)

// writeStoreError converts wormhole errors to HTTP responses.
func writeStoreError(w http.ResponseWriter, err error) {
	var (
		beamErr     *beam.ValidationError
		wormholeErr *channel.ValidationError
		userErr     *user.ValidationError
	)
	switch {
	case errors.As(err, &beamErr), errors.As(err, &wormholeErr), errors.As(err, &userErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wormhole.ErrBeamNotFound),
		errors.Is(err, wormhole.ErrWormholeNotFound),
		errors.Is(err, wormhole.ErrUserNotFound),
		errors.Is(err, wormhole.ErrFailureNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wormhole.ErrBeamExists),
		errors.Is(err, wormhole.ErrWormholeExists),
		errors.Is(err, wormhole.ErrUserExists),
		errors.Is(err, wormhole.ErrNicknameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wormhole.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
