package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"nearme/cmd/identity"
	"nearme/cmd/internal/geo"
	"nearme/cmd/internal/invite"
	"nearme/cmd/internal/metrics"
	"nearme/cmd/internal/nearby"
	v1 "nearme/shared/contracts/api/v1"
)

// Handler wires the REST endpoints to the domain services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users   *identity.Service
	nearby  *nearby.Service
	invites *invite.Service
}

// NewHandler constructs a Handler. All services are required.
func NewHandler(log *slog.Logger, cfg Config, users *identity.Service, near *nearby.Service, invites *invite.Service) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || near == nil || invites == nil {
		return nil, errors.New("api: nil service")
	}
	return &Handler{
		log:     log,
		cfg:     cfg.normalized(),
		users:   users,
		nearby:  near,
		invites: invites,
	}, nil
}

// Register wires all routes onto mux. wrapAuth, when non-nil, wraps the
// credential endpoints (register, login).
func (h *Handler) Register(mux *http.ServeMux, wrapAuth func(http.Handler) http.Handler) {
	if h == nil || mux == nil {
		return
	}
	auth := func(f http.HandlerFunc) http.Handler {
		if wrapAuth == nil {
			return f
		}
		return wrapAuth(f)
	}

	mux.Handle(v1.RouteRegister, auth(h.handleRegister))
	mux.Handle(v1.RouteLogin, auth(h.handleLogin))
	mux.HandleFunc(v1.RouteUpdateLocation, h.handleUpdateLocation)
	mux.HandleFunc(v1.RouteNearby, h.handleNearby)
	mux.HandleFunc(v1.RouteGetProfile, h.handleGetProfile)
	mux.HandleFunc(v1.RouteUpdateProfile, h.handleUpdateProfile)
	mux.HandleFunc(v1.RouteUpdateStatus, h.handleUpdateStatus)
	mux.HandleFunc(v1.RouteSendInvitation, h.handleSendInvitation)
	mux.HandleFunc(v1.RouteAcceptInvitation, h.handleRespond(invite.ActionAccept))
	mux.HandleFunc(v1.RouteDeclineInvitation, h.handleRespond(invite.ActionDecline))
	mux.HandleFunc(v1.RouteListSent, h.handleListSent)
	mux.HandleFunc(v1.RouteListReceived, h.handleListReceived)
}

// ---- accounts ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req v1.RegisterRequest
	if !h.decodeValid(w, r, &req) {
		metrics.RecordRegistration("invalid")
		return
	}

	u, err := h.users.Register(r.Context(), identity.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Location: geo.Point{Lon: *req.Longitude, Lat: *req.Latitude},
	})
	switch {
	case err == nil:
	case identity.IsConflict(err):
		metrics.RecordRegistration("conflict")
		writeError(w, http.StatusBadRequest, v1.CodeConflict, v1.MsgUserExists)
		return
	case identity.IsInvalidInput(err):
		metrics.RecordRegistration("invalid")
		writeError(w, http.StatusBadRequest, v1.CodeInvalidInput, inputMessage(err))
		return
	default:
		metrics.RecordRegistration("error")
		h.serverError(w, "api.register.fail", err)
		return
	}

	metrics.RecordRegistration("ok")
	h.log.Info("api.register.ok", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, v1.AuthResponse{Msg: v1.MsgRegistered, UserID: u.ID})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req v1.LoginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, v1.CodeInvalidInput, "invalid request body")
		return
	}

	// Missing fields are reported like wrong credentials.
	u, err := h.users.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case identity.IsInvalidCredentials(err):
		metrics.RecordLogin("invalid_credentials")
		writeError(w, http.StatusBadRequest, v1.CodeInvalidCredentials, v1.MsgInvalidCreds)
		return
	default:
		metrics.RecordLogin("error")
		h.serverError(w, "api.login.fail", err)
		return
	}

	metrics.RecordLogin("ok")
	writeJSON(w, http.StatusOK, v1.AuthResponse{Msg: v1.MsgLoggedIn, UserID: u.ID})
}

// ---- location and discovery ----

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req v1.UpdateLocationRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	p, err := geo.NewPoint(*req.Latitude, *req.Longitude)
	if err != nil {
		writeError(w, http.StatusBadRequest, v1.CodeInvalidInput, err.Error())
		return
	}

	if err := h.users.Store().UpdateLocation(r.Context(), r.PathValue("userId"), p, timeNow()); err != nil {
		h.userError(w, "api.location.fail", err)
		return
	}
	metrics.RecordLocationUpdate()
	writeJSON(w, http.StatusOK, v1.MessageResponse{Msg: v1.MsgLocationUpdated})
}

func (h *Handler) handleNearby(w http.ResponseWriter, r *http.Request) {
	found, err := h.nearby.Lookup(r.Context(), r.PathValue("userId"), r.URL.Query().Get("radius"))
	if err != nil {
		if errors.Is(err, nearby.ErrInvalidRadius) {
			writeError(w, http.StatusBadRequest, v1.CodeInvalidRadius, "radius must be a positive integer (meters)")
			return
		}
		h.userError(w, "api.nearby.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, toNearbyUsers(found))
}

// ---- profile and presence ----

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Store().GetUser(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.userError(w, "api.profile.get.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(u))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req v1.UpdateProfileRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	patch, err := toProfilePatch(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, v1.CodeInvalidInput, err.Error())
		return
	}

	u, err := h.users.Store().UpdateProfile(r.Context(), r.PathValue("userId"), patch, timeNow())
	if err != nil {
		h.userError(w, "api.profile.update.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, v1.ProfileResponse{Msg: v1.MsgProfileUpdated, User: toUser(u)})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req v1.UpdateStatusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if err := h.users.Store().SetOnline(r.Context(), r.PathValue("userId"), *req.IsOnline, timeNow()); err != nil {
		h.userError(w, "api.status.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, v1.StatusResponse{Msg: v1.MsgStatusUpdated, IsOnline: *req.IsOnline})
}

// ---- invitations ----

func (h *Handler) handleSendInvitation(w http.ResponseWriter, r *http.Request) {
	var req v1.SendInvitationRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()
	inv, err := h.invites.Send(ctx, invite.SendInput{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Reason:     req.Reason,
	})
	if err != nil {
		h.inviteError(w, "api.invite.send.fail", err)
		return
	}
	metrics.RecordInvitation("sent")

	entry, err := h.invites.Describe(ctx, inv)
	if err != nil {
		h.serverError(w, "api.invite.send.describe.fail", err)
		return
	}
	writeJSON(w, http.StatusCreated, v1.InvitationResponse{Msg: v1.MsgInvitationSent, Invitation: toInvitation(entry)})
}

func (h *Handler) handleRespond(action invite.Action) http.HandlerFunc {
	msg, event := v1.MsgInvitationAccept, "accepted"
	if action == invite.ActionDecline {
		msg, event = v1.MsgInvitationDecline, "declined"
	}
	logEvent := "api.invite." + string(action) + ".fail"

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		inv, err := h.invites.Respond(ctx, r.PathValue("id"), action)
		if err != nil {
			h.inviteError(w, logEvent, err)
			return
		}
		metrics.RecordInvitation(event)

		entry, err := h.invites.Describe(ctx, inv)
		if err != nil {
			h.serverError(w, logEvent, err)
			return
		}
		writeJSON(w, http.StatusOK, v1.InvitationResponse{Msg: msg, Invitation: toInvitation(entry)})
	}
}

func (h *Handler) handleListSent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.invites.ListSent(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.serverError(w, "api.invite.sent.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitations(entries))
}

func (h *Handler) handleListReceived(w http.ResponseWriter, r *http.Request) {
	entries, err := h.invites.ListReceived(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.serverError(w, "api.invite.received.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvitations(entries))
}

// ---- helpers ----

// decodeValid decodes and validates the body into dst, writing a 400 on failure.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, v1.CodeInvalidInput, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, v1.CodeInvalidInput, "invalid request body")
		return false
	}
	if err := validateRequest(dst); err != nil {
		writeError(w, http.StatusBadRequest, v1.CodeInvalidInput, err.Error())
		return false
	}
	return true
}

// userError maps directory errors for endpoints addressed by {userId}.
func (h *Handler) userError(w http.ResponseWriter, event string, err error) {
	switch {
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, v1.CodeNotFound, v1.MsgUserNotFound)
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, v1.CodeInvalidInput, inputMessage(err))
	default:
		h.serverError(w, event, err)
	}
}

func (h *Handler) inviteError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, invite.ErrNotFound):
		writeError(w, http.StatusNotFound, v1.CodeNotFound, v1.MsgInvitationMissing)
	case errors.Is(err, invite.ErrNotPending):
		writeError(w, http.StatusConflict, v1.CodeNotPending, "invitation already answered")
	case errors.Is(err, invite.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, v1.CodeInvalidInput, strings.TrimPrefix(err.Error(), invite.ErrInvalidInput.Error()+": "))
	default:
		h.serverError(w, event, err)
	}
}

// serverError logs the cause and answers with a generic 500.
func (h *Handler) serverError(w http.ResponseWriter, event string, err error) {
	h.log.Error(event, "err", err)
	writeError(w, http.StatusInternalServerError, v1.CodeInternal, v1.MsgServerError)
}

// inputMessage extracts the client-safe part of an identity input error.
func inputMessage(err error) string {
	var opErr identity.OpError
	if errors.As(err, &opErr) && opErr.Msg != "" {
		return opErr.Msg
	}
	return "invalid input"
}
