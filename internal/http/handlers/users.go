package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/training-center/internal/errors"
	"github.com/pribylovaa/training-center/internal/http/middleware"
	"github.com/pribylovaa/training-center/internal/models"
)

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrTokenMissing)
		return
	}

	user, err := h.Svc.Me(r.Context(), claims.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{User: userFromModel(user)})
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrTokenMissing)
		return
	}

	var in updateProfileRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	user, err := h.Svc.UpdateProfile(r.Context(), claims.UserID, in.DisplayName)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{User: userFromModel(user)})
}

func (h *Handlers) AvatarPresign(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrTokenMissing)
		return
	}

	var in presignRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	info, err := h.Svc.AvatarPresign(r.Context(), claims.UserID, in.ContentType, in.ContentLength)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, presignResponse{
		UploadURL:       info.UploadURL,
		AvatarKey:       info.AvatarKey,
		ExpiresIn:       int64(info.Expires.Seconds()),
		RequiredHeaders: info.RequiredHeader,
	})
}

func (h *Handlers) AvatarConfirm(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrTokenMissing)
		return
	}

	var in confirmRequest
	if err := decodeStrict(w, r, &in); err != nil || in.AvatarKey == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	user, err := h.Svc.AvatarConfirm(r.Context(), claims.UserID, in.AvatarKey)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{User: userFromModel(user)})
}

// AdminUpdateUser changes role and/or active flag of another account.
func (h *Handlers) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrTokenMissing)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	var in adminPatchRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	var patch models.UserPatch
	if in.Role != nil {
		role := models.Role(*in.Role)
		patch.Role = &role
	}
	patch.Active = in.Active

	user, err := h.Svc.AdminUpdateUser(r.Context(), claims.UserID, id, patch)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{User: userFromModel(user)})
}
