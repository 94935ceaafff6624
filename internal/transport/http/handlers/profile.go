package handlers

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/application/profile"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/dto"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/middleware"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/response"
)

type ProfileHandler struct {
	svc *profile.Service
}

func NewProfileHandler(svc *profile.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req dto.SaveProfile
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Err(w, r, domain.ErrValidation("malformed JSON body"))
		return
	}
	if err := dto.Validate(req); err != nil {
		response.Err(w, r, err)
		return
	}

	p, err := h.svc.Save(r.Context(), middleware.UserID(r), profile.SaveInput{
		FullName:  req.FullName,
		Headline:  req.Headline,
		Location:  req.Location,
		ResumeURL: req.ResumeURL,
		Email:     req.Email,
		Phone:     req.Phone,
		PushToken: req.PushToken,
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, p)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), middleware.UserID(r))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, r, http.StatusOK, p)
}
