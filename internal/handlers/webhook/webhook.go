package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/dto"
	"github.com/GlebRadaev/boostmarket/internal/service/reconcileservice"
	"github.com/GlebRadaev/boostmarket/pkg/utils"
)

type Service interface {
	HandleNotification(ctx context.Context, n domain.BankNotification) (*domain.WebhookEvent, error)
	ListForReview(ctx context.Context) ([]domain.WebhookEvent, error)
}

type WebhookHandler struct {
	reconcileService Service
	apiKey           string
}

func New(reconcileService Service, apiKey string) *WebhookHandler {
	return &WebhookHandler{
		reconcileService: reconcileService,
		apiKey:           apiKey,
	}
}

// authorized expects "Authorization: Apikey <key>". With no key configured every call is refused.
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.apiKey == "" {
		return false
	}
	scheme, key, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Apikey") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(key)), []byte(h.apiKey)) == 1
}

// BankNotification godoc
//
//	@Summary		Inbound bank transfer notification
//	@Description	Acknowledges every notification it could store, including duplicates and ones left for review
//	@Tags			Webhooks
//	@Accept			json
//	@Produce		json
//	@Param			Authorization	header		string					true	"Apikey <key>"
//	@Param			request			body		dto.BankNotificationDTO	true	"Notification"
//	@Success		200				{object}	dto.WebhookResponseDTO
//	@Failure		400				{object}	utils.Response	"Undecodable body or invalid notification id"
//	@Failure		401				{object}	utils.Response	"Invalid api key"
//	@Failure		500				{object}	utils.Response	"Internal server error"
//	@Router			/api/webhooks/bank [post]
func (h *WebhookHandler) BankNotification(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid api key")
		return
	}

	var req dto.BankNotificationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		zap.L().Warn("undecodable bank notification", zap.Error(err))
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	event, err := h.reconcileService.HandleNotification(r.Context(), req.Notification())
	if err != nil {
		if errors.Is(err, reconcileservice.ErrMissingProviderID) || errors.Is(err, reconcileservice.ErrProviderIDTooLong) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.WebhookResponseDTO{Success: true, Outcome: event.Status})
}

// ListForReview godoc
//
//	@Summary	List bank notifications waiting for manual review
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{array}		dto.WebhookEventResponseDTO
//	@Failure	500	{object}	utils.Response	"Internal server error"
//	@Router		/api/admin/webhooks/review [get]
func (h *WebhookHandler) ListForReview(w http.ResponseWriter, r *http.Request) {
	events, err := h.reconcileService.ListForReview(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewWebhookEventsResponse(events))
}
