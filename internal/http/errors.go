package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/keyfold/keyfold/internal/command"
	"github.com/keyfold/keyfold/internal/domain/apikey"
	"github.com/keyfold/keyfold/internal/domain/otp"
	"github.com/keyfold/keyfold/internal/domain/role"
	"github.com/keyfold/keyfold/internal/domain/session"
	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/es/uniq"
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	HolderID         string `json:"holder_id,omitempty"`
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, desc string) {
	WriteJSON(w, status, apiError{Error: code, ErrorDescription: desc})
}

// ReadJSON decodifica JSON de forma tolerante (no falla por campos
// desconocidos) y limita el body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido")
		return false
	}
	return true
}

// writeDomainError traduce la taxonomía de errores del kernel a HTTP.
func writeDomainError(w http.ResponseWriter, err error) {
	var conflict *uniq.ConflictError
	switch {
	case errors.As(err, &conflict):
		WriteJSON(w, http.StatusConflict, apiError{
			Error:            "unique_conflict",
			ErrorDescription: conflict.Error(),
			HolderID:         conflict.HolderID.String(),
		})
	case errors.Is(err, es.ErrVersionConflict):
		WriteError(w, http.StatusConflict, "version_conflict", "el stream avanzó desde la versión esperada")
	case errors.Is(err, es.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "")
	case errors.Is(err, apikey.ErrTenantMismatch):
		WriteError(w, http.StatusConflict, "tenant_mismatch", err.Error())
	case errors.Is(err, command.ErrInvalidToken),
		errors.Is(err, apikey.ErrIncorrectSecret),
		errors.Is(err, apikey.ErrExpired),
		errors.Is(err, session.ErrIncorrectSecret),
		errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrNotPersistent),
		errors.Is(err, otp.ErrAlreadyUsed),
		errors.Is(err, otp.ErrExpired),
		errors.Is(err, otp.ErrMaxAttempts):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, apikey.ErrNameRequired),
		errors.Is(err, role.ErrNameRequired),
		errors.Is(err, apikey.ErrExpiryInPast),
		errors.Is(err, apikey.ErrExpiryCleared),
		errors.Is(err, apikey.ErrExpiryExtended),
		errors.Is(err, otp.ErrExpiryInPast),
		errors.Is(err, otp.ErrMaxAttemptsRange):
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
