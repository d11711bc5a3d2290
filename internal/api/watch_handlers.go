package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	domainerrors "github.com/giannitedesco/minotaur/internal/errors"
	"github.com/giannitedesco/minotaur/internal/http/response"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

const maxRequestSize = 64 << 10

// SessionResponse describes the session behind the API.
type SessionResponse struct {
	ID         string `json:"id"`
	Kernel     string `json:"kernel"`
	MaskCreate bool   `json:"mask_create"`
	Closed     bool   `json:"closed"`
	Watches    int    `json:"watches"`
}

// AddWatchRequest is the body of POST /api/v1/watches.
type AddWatchRequest struct {
	Path string `json:"path" validate:"required"`
	Mask string `json:"mask" validate:"required,inotifymask"`
}

// AddWatchResponse is returned for a successful registration.
type AddWatchResponse struct {
	Watch inotify.WatchInfo `json:"watch"`
	// Updated is true when the path named a watch that already existed.
	Updated bool `json:"updated"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	caps := s.watches.Capabilities()
	response.Success(w, SessionResponse{
		ID:         s.watches.ID().String(),
		Kernel:     caps.Kernel,
		MaskCreate: caps.MaskCreate,
		Closed:     s.watches.Closed(),
		Watches:    len(s.watches.Watches()),
	}, s.logger)
}

func (s *Server) handleListWatches(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, s.watches.Watches(), s.logger)
}

func (s *Server) handleGetWatch(w http.ResponseWriter, r *http.Request) {
	info, err := s.lookupWatch(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, info, s.logger)
}

func (s *Server) handleAddWatch(w http.ResponseWriter, r *http.Request) {
	var req AddWatchRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		response.HandleError(w, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid request body"), s.logger)
		return
	}
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	// Validated above.
	mask, _ := inotify.ParseMask(req.Mask)

	info, existed, err := s.watches.Add(req.Path, mask)
	if err != nil {
		response.HandleError(w, fromInotify(err), s.logger)
		return
	}

	s.logger.Info("watch added over API", "path", req.Path, "wd", info.Descriptor.WD(), "mask", mask.String(), "updated", existed)
	if existed {
		response.Success(w, AddWatchResponse{Watch: info, Updated: true}, s.logger)
		return
	}
	response.Created(w, AddWatchResponse{Watch: info}, s.logger)
}

func (s *Server) handleDeleteWatch(w http.ResponseWriter, r *http.Request) {
	info, err := s.lookupWatch(r)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.watches.Cancel(info.Descriptor); err != nil {
		response.HandleError(w, fromInotify(err), s.logger)
		return
	}

	s.logger.Info("watch removed over API", "wd", info.Descriptor.WD())
	response.NoContent(w)
}

func (s *Server) lookupWatch(r *http.Request) (inotify.WatchInfo, error) {
	raw := chi.URLParam(r, "wd")
	wd, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return inotify.WatchInfo{}, domainerrors.Validationf("invalid watch descriptor %q", raw)
	}

	//nolint:gosec // G115: ParseInt bounded the value to 32 bits
	info, ok := s.watches.Lookup(int32(wd))
	if !ok {
		return inotify.WatchInfo{}, domainerrors.NotFoundf("no watch with descriptor %d", wd)
	}
	return info, nil
}
