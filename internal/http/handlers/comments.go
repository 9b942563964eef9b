package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/training-center/internal/errors"
	"github.com/pribylovaa/training-center/internal/http/middleware"
	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/service"
)

func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrTokenMissing)
		return
	}

	courseID := chi.URLParam(r, "course_id")
	if courseID == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	var in createCommentRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	c, err := h.Svc.CreateComment(r.Context(), service.CreateCommentInput{
		CourseID: courseID,
		ParentID: in.ParentID,
		UserID:   claims.UserID,
		Username: claims.DisplayName,
		Content:  in.Content,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, commentEnvelope{Comment: commentFromModel(c)})
}

func (h *Handlers) GetComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	c, err := h.Svc.Comment(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, commentEnvelope{Comment: commentFromModel(c)})
}

func (h *Handlers) ListCourseComments(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "course_id")
	if courseID == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	p, ok := listParams(r)
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	page, err := h.Svc.ListCourseComments(r.Context(), courseID, p)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pageFromModel(page))
}

func (h *Handlers) ListReplies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	p, ok := listParams(r)
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	page, err := h.Svc.ListReplies(r.Context(), id, p)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pageFromModel(page))
}

func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.Svc.DeleteComment(r.Context(), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func listParams(r *http.Request) (models.ListParams, bool) {
	var p models.ListParams
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return p, false
		}

		p.PageSize = int32(n)
	}

	p.PageToken = r.URL.Query().Get("page_token")
	return p, true
}
