package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/command"
	"github.com/keyfold/keyfold/internal/domain/role"
)

func realmOf(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "realm"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "realm inválido")
		return uuid.Nil, false
	}
	return id, true
}

func idOf(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "id inválido")
		return uuid.Nil, false
	}
	return id, true
}

// deleteEntity: el patrón común de los DELETE; borrado suave, 204 al éxito.
func deleteEntity(w http.ResponseWriter, r *http.Request, del func(context.Context, uuid.UUID, uuid.UUID, *uuid.UUID) error) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	id, ok := idOf(w, r)
	if !ok {
		return
	}
	if err := del(r.Context(), realm, id, nil); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	deleteEntity(w, r, s.cmds.DeleteRole)
}

func (s *Server) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	deleteEntity(w, r, s.cmds.DeleteAPIKey)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	deleteEntity(w, r, s.cmds.DeleteSession)
}

func (s *Server) deleteOTP(w http.ResponseWriter, r *http.Request) {
	deleteEntity(w, r, s.cmds.DeleteOTP)
}

type replaceRoleRequest struct {
	ID              *uuid.UUID `json:"id,omitempty"`
	ExpectedVersion *int64     `json:"expected_version,omitempty"`
	Name            string     `json:"name"`
	Description     *string    `json:"description,omitempty"`
	Actor           *uuid.UUID `json:"actor,omitempty"`
}

func (s *Server) replaceRole(w http.ResponseWriter, r *http.Request) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	var req replaceRoleRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	view, created, err := s.cmds.ReplaceRole(r.Context(), command.ReplaceRoleInput{
		TenantID:        realm,
		ID:              req.ID,
		ExpectedVersion: req.ExpectedVersion,
		Name:            req.Name,
		Description:     req.Description,
		Actor:           req.Actor,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, view)
}

type replaceAPIKeyRequest struct {
	ID              *uuid.UUID        `json:"id,omitempty"`
	ExpectedVersion *int64            `json:"expected_version,omitempty"`
	Name            string            `json:"name"`
	Description     *string           `json:"description,omitempty"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	Roles           []uuid.UUID       `json:"roles,omitempty"`
	Actor           *uuid.UUID        `json:"actor,omitempty"`
}

func (s *Server) replaceAPIKey(w http.ResponseWriter, r *http.Request) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	var req replaceAPIKeyRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	refs := make([]role.Ref, 0, len(req.Roles))
	for _, id := range req.Roles {
		refs = append(refs, role.Ref{ID: id, Tenant: realm})
	}
	res, err := s.cmds.ReplaceAPIKey(r.Context(), command.ReplaceAPIKeyInput{
		TenantID:        realm,
		ID:              req.ID,
		ExpectedVersion: req.ExpectedVersion,
		Name:            req.Name,
		Description:     req.Description,
		ExpiresAt:       req.ExpiresAt,
		Attributes:      req.Attributes,
		Roles:           refs,
		Actor:           req.Actor,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, res)
}

type authenticateRequest struct {
	Token string `json:"token"`
}

func (s *Server) authenticateAPIKey(w http.ResponseWriter, r *http.Request) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	var req authenticateRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := s.cmds.AuthenticateAPIKey(r.Context(), realm, req.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

type startSessionRequest struct {
	UserID     uuid.UUID         `json:"user_id"`
	Persistent bool              `json:"persistent"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Actor      *uuid.UUID        `json:"actor,omitempty"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.UserID == uuid.Nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "user_id requerido")
		return
	}
	res, err := s.cmds.StartSession(r.Context(), command.StartSessionInput{
		TenantID:   realm,
		UserID:     req.UserID,
		Persistent: req.Persistent,
		Attributes: req.Attributes,
		Actor:      req.Actor,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, res)
}

type renewSessionRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) renewSession(w http.ResponseWriter, r *http.Request) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	var req renewSessionRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	res, err := s.cmds.RenewSession(r.Context(), realm, req.RefreshToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) signOutSession(w http.ResponseWriter, r *http.Request) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	id, ok := idOf(w, r)
	if !ok {
		return
	}
	if err := s.cmds.SignOutSession(r.Context(), realm, id, nil); err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

type createOTPRequest struct {
	Code        string     `json:"code"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxAttempts *int       `json:"max_attempts,omitempty"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Actor       *uuid.UUID `json:"actor,omitempty"`
}

func (s *Server) createOTP(w http.ResponseWriter, r *http.Request) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	var req createOTPRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "code requerido")
		return
	}
	view, err := s.cmds.CreateOTP(r.Context(), command.CreateOTPInput{
		TenantID:    realm,
		Code:        req.Code,
		ExpiresAt:   req.ExpiresAt,
		MaxAttempts: req.MaxAttempts,
		UserID:      req.UserID,
		Actor:       req.Actor,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, view)
}

type validateOTPRequest struct {
	Code  string     `json:"code"`
	Actor *uuid.UUID `json:"actor,omitempty"`
}

func (s *Server) validateOTP(w http.ResponseWriter, r *http.Request) {
	realm, ok := realmOf(w, r)
	if !ok {
		return
	}
	id, ok := idOf(w, r)
	if !ok {
		return
	}
	var req validateOTPRequest
	if !ReadJSON(w, r, &req) {
		return
	}
	ok2, err := s.cmds.ValidateOTP(r.Context(), realm, id, req.Code, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"valid": ok2})
}
