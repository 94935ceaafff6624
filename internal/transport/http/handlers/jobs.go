package handlers

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/application/jobs"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/dto"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/middleware"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/response"
)

type JobsHandler struct {
	svc *jobs.Service
}

func NewJobsHandler(svc *jobs.Service) *JobsHandler {
	return &JobsHandler{svc: svc}
}

func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateJob
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("malformed JSON body"))
		return
	}
	if err := dto.Validate(req); err != nil {
		response.Err(w, r, err)
		return
	}

	job, err := h.svc.Create(r.Context(), middleware.UserID(r), jobs.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Deadline:    req.Deadline,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusCreated, job)
}

func (h *JobsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "job_id")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.UpdateJob
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("malformed JSON body"))
		return
	}
	if err := dto.Validate(req); err != nil {
		response.Err(w, r, err)
		return
	}

	job, err := h.svc.Update(r.Context(), middleware.UserID(r), id, jobs.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Deadline:    req.Deadline,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, job)
}

func (h *JobsHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "job_id")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	var req dto.ChangeJobStatus
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("malformed JSON body"))
		return
	}
	if err := dto.Validate(req); err != nil {
		response.Err(w, r, err)
		return
	}

	job, err := h.svc.ChangeStatus(r.Context(), middleware.UserID(r), id, domain.JobStatus(req.Status))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, job)
}

// Search is public and served from the 60s cache class.
func (h *JobsHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	q := r.URL.Query()

	out, err := h.svc.Search(r.Context(), postgres.JobSearch{
		Keyword:  q.Get("q"),
		Location: q.Get("location"),
		Status:   q.Get("status"),
		Sort:     q.Get("sort"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, out)
}

// Detail is public, counts the view, and is served from the 300s cache class.
func (h *JobsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "job_id")
	if err != nil {
		response.Err(w, r, err)
		return
	}
	job, err := h.svc.Detail(r.Context(), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, job)
}
