package applications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/dto"
	"github.com/GlebRadaev/boostmarket/internal/service/applicationservice"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
	"github.com/GlebRadaev/boostmarket/pkg/utils"
)

type Service interface {
	Apply(ctx context.Context, actor domain.Actor, app *domain.BoosterApplication) (*domain.BoosterApplication, error)
	GetMine(ctx context.Context, userID int) (*domain.BoosterApplication, error)
	List(ctx context.Context, status string) ([]domain.BoosterApplication, error)
	StartTesting(ctx context.Context, id int) (*domain.BoosterApplication, error)
	Approve(ctx context.Context, id int) (*domain.BoosterApplication, error)
	Reject(ctx context.Context, id int, reason string) (*domain.BoosterApplication, error)
	SetLevel(ctx context.Context, id int, level string) (*domain.BoosterApplication, error)
}

type ApplicationHandler struct {
	applicationService Service
}

func New(applicationService Service) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
	}
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, applicationservice.ErrInvalidApplication), errors.Is(err, applicationservice.ErrInvalidLevel):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, applicationservice.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, applicationservice.ErrAlreadyApplied),
		errors.Is(err, applicationservice.ErrAlreadyBooster),
		errors.Is(err, applicationservice.ErrConflict):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respond(w http.ResponseWriter, code int, app *domain.BoosterApplication, err error) {
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, code, dto.NewApplicationResponse(app))
}

func applicationID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid application id")
		return 0, false
	}
	return id, true
}

// Apply godoc
//
//	@Summary	Apply to become a booster
//	@Tags		Applications
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		dto.ApplicationRequestDTO	true	"Application"
//	@Success	201		{object}	dto.ApplicationResponseDTO
//	@Failure	400		{object}	utils.Response	"Invalid application"
//	@Failure	409		{object}	utils.Response	"Application already open"
//	@Router		/api/applications [post]
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplicationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, role, _ := auth.FromContext(r.Context())
	app, err := h.applicationService.Apply(r.Context(), domain.Actor{UserID: userID, Role: role}, req.Application())
	respond(w, http.StatusCreated, app, err)
}

// GetMine godoc
//
//	@Summary	Get the caller's latest application
//	@Tags		Applications
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	dto.ApplicationResponseDTO
//	@Failure	404	{object}	utils.Response	"No application"
//	@Router		/api/applications/mine [get]
func (h *ApplicationHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := auth.FromContext(r.Context())
	app, err := h.applicationService.GetMine(r.Context(), userID)
	respond(w, http.StatusOK, app, err)
}

// List godoc
//
//	@Summary	List applications
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		status	query	string	false	"pending, testing, approved or rejected"
//	@Success	200		{array}	dto.ApplicationResponseDTO
//	@Router		/api/admin/applications [get]
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	apps, err := h.applicationService.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, err)
		return
	}
	resp := make([]dto.ApplicationResponseDTO, 0, len(apps))
	for i := range apps {
		resp = append(resp, dto.NewApplicationResponse(&apps[i]))
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// StartTesting godoc
//
//	@Summary	Move an application to the testing stage
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Application id"
//	@Success	200	{object}	dto.ApplicationResponseDTO
//	@Router		/api/admin/applications/{id}/testing [post]
func (h *ApplicationHandler) StartTesting(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.applicationService.StartTesting(r.Context(), id)
	respond(w, http.StatusOK, app, err)
}

// Approve godoc
//
//	@Summary	Approve an application and promote the user to booster
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Application id"
//	@Success	200	{object}	dto.ApplicationResponseDTO
//	@Failure	409	{object}	utils.Response	"Already decided"
//	@Router		/api/admin/applications/{id}/approve [post]
func (h *ApplicationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.applicationService.Approve(r.Context(), id)
	respond(w, http.StatusOK, app, err)
}

// Reject godoc
//
//	@Summary	Reject an application
//	@Tags		Admin
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		int						true	"Application id"
//	@Param		request	body		dto.RejectRequestDTO	true	"Reason"
//	@Success	200		{object}	dto.ApplicationResponseDTO
//	@Router		/api/admin/applications/{id}/reject [post]
func (h *ApplicationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	var req dto.RejectRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	app, err := h.applicationService.Reject(r.Context(), id, req.Reason)
	respond(w, http.StatusOK, app, err)
}

// SetLevel godoc
//
//	@Summary	Set an approved booster's trust level
//	@Tags		Admin
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		int					true	"Application id"
//	@Param		request	body		dto.LevelRequestDTO	true	"Level"
//	@Success	200		{object}	dto.ApplicationResponseDTO
//	@Router		/api/admin/applications/{id}/level [post]
func (h *ApplicationHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := applicationID(w, r)
	if !ok {
		return
	}
	var req dto.LevelRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	app, err := h.applicationService.SetLevel(r.Context(), id, req.Level)
	respond(w, http.StatusOK, app, err)
}
