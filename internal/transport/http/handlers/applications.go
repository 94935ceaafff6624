package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/application/apps"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/dto"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/middleware"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/response"
)

type ApplicationsHandler struct {
	svc *apps.Service
}

func NewApplicationsHandler(svc *apps.Service) *ApplicationsHandler {
	return &ApplicationsHandler{svc: svc}
}

func (h *ApplicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateApplication
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("malformed JSON body"))
		return
	}
	if err := dto.Validate(req); err != nil {
		response.Err(w, r, err)
		return
	}

	app, err := h.svc.Create(r.Context(), middleware.UserID(r), apps.CreateInput{
		JobID:       req.JobID,
		CoverLetter: req.CoverLetter,
		ResumeURL:   req.ResumeURL,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusCreated, app)
}

func (h *ApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "application_id")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	app, err := h.svc.Get(r.Context(), middleware.UserID(r), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, app)
}

func (h *ApplicationsHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	list, err := h.svc.ListByUser(r.Context(), middleware.UserID(r), page, pageSize)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, list)
}

func (h *ApplicationsHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "application_id")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.ChangeApplicationStatus
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("malformed JSON body"))
		return
	}
	if err := dto.Validate(req); err != nil {
		response.Err(w, r, err)
		return
	}

	app, err := h.svc.ChangeStatus(r.Context(), middleware.UserID(r), id, domain.ApplicationStatus(req.Status))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, app)
}

func (h *ApplicationsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "application_id")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	app, err := h.svc.Withdraw(r.Context(), middleware.UserID(r), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, app)
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrValidation(param + " must be a positive integer")
	}
	return id, nil
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
