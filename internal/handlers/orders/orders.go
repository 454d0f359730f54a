package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/dto"
	"github.com/GlebRadaev/boostmarket/internal/pricing"
	"github.com/GlebRadaev/boostmarket/internal/service/orderservice"
	"github.com/GlebRadaev/boostmarket/internal/service/walletservice"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
	"github.com/GlebRadaev/boostmarket/pkg/utils"
)

type Service interface {
	Quote(in pricing.Input) (pricing.Quote, error)
	Create(ctx context.Context, customerID int, req orderservice.CreateRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID int) (*domain.Order, error)
	GetOrders(ctx context.Context, customerID int) ([]domain.Order, error)
	Cancel(ctx context.Context, customerID, orderID int) (*domain.Order, error)
	Dispute(ctx context.Context, actor domain.Actor, orderID int) (*domain.Order, error)

	GetAvailable(ctx context.Context) ([]domain.Order, error)
	GetBoosterOrders(ctx context.Context, boosterID int) ([]domain.Order, error)
	Claim(ctx context.Context, boosterID, orderID int) (*domain.Order, error)
	Start(ctx context.Context, boosterID, orderID int) (*domain.Order, error)
	Complete(ctx context.Context, actor domain.Actor, orderID int) (*domain.Order, error)

	Refund(ctx context.Context, orderID int) (*domain.Order, error)
	ReleaseEarnings(ctx context.Context, orderID int) (*domain.Order, bool, error)
}

type OrderHandler struct {
	orderService Service
}

func New(orderService Service) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

func actor(r *http.Request) domain.Actor {
	userID, role, _ := auth.FromContext(r.Context())
	return domain.Actor{UserID: userID, Role: role}
}

func orderID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid order id")
		return 0, false
	}
	return id, true
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orderservice.ErrInvalidOrder):
		utils.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, walletservice.ErrInsufficientFunds):
		utils.RespondWithError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, orderservice.ErrOrderNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orderservice.ErrForbidden):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, orderservice.ErrOrderUnavailable),
		errors.Is(err, orderservice.ErrInvalidTransition),
		errors.Is(err, orderservice.ErrAlreadyReleased):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondOrder(w http.ResponseWriter, code int, order *domain.Order, err error) {
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, code, dto.NewOrderResponse(order))
}

func respondOrders(w http.ResponseWriter, orders []domain.Order, err error) {
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.NewOrdersResponse(orders))
}

// Quote godoc
//
//	@Summary		Price a selection
//	@Description	Returns the live estimate. valid=false tells that checkout would reject the same selection.
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.OrderRequestDTO	true	"Selection"
//	@Success		200		{object}	dto.QuoteResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Router			/api/pricing/quote [post]
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req dto.OrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	q, err := h.orderService.Quote(req.Input())
	utils.RespondWithJSON(w, http.StatusOK, dto.NewQuoteResponse(q, err))
}

// CreateOrder godoc
//
//	@Summary		Place an order
//	@Description	Prices the selection and pays for it from the wallet
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		dto.OrderRequestDTO	true	"Selection"
//	@Success		201		{object}	dto.OrderResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		402		{object}	utils.Response	"Insufficient funds"
//	@Failure		422		{object}	utils.Response	"Invalid selection"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/orders [post]
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.OrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	order, err := h.orderService.Create(r.Context(), actor(r).UserID, orderservice.CreateRequest{
		Input:    req.Input(),
		Champion: req.Champion,
		Server:   req.Server,
		Summoner: req.Summoner,
	})
	respondOrder(w, http.StatusCreated, order, err)
}

// GetOrders godoc
//
//	@Summary	List the caller's orders
//	@Tags		Orders
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{array}		dto.OrderResponseDTO
//	@Failure	500	{object}	utils.Response	"Internal server error"
//	@Router		/api/orders [get]
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.GetOrders(r.Context(), actor(r).UserID)
	respondOrders(w, orders, err)
}

// GetOrder godoc
//
//	@Summary	Get one order
//	@Tags		Orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Order id"
//	@Success	200	{object}	dto.OrderResponseDTO
//	@Failure	404	{object}	utils.Response	"Order not found"
//	@Router		/api/orders/{id} [get]
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(r.Context(), actor(r), id)
	respondOrder(w, http.StatusOK, order, err)
}

// CancelOrder godoc
//
//	@Summary	Cancel an unclaimed order and refund it
//	@Tags		Orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Order id"
//	@Success	200	{object}	dto.OrderResponseDTO
//	@Failure	409	{object}	utils.Response	"Order can no longer be cancelled"
//	@Router		/api/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.Cancel(r.Context(), actor(r).UserID, id)
	respondOrder(w, http.StatusOK, order, err)
}

// DisputeOrder godoc
//
//	@Summary	Open a dispute
//	@Tags		Orders
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Order id"
//	@Success	200	{object}	dto.OrderResponseDTO
//	@Failure	403	{object}	utils.Response	"Not a party of the order"
//	@Failure	409	{object}	utils.Response	"Order cannot be disputed"
//	@Router		/api/orders/{id}/dispute [post]
func (h *OrderHandler) DisputeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.Dispute(r.Context(), actor(r), id)
	respondOrder(w, http.StatusOK, order, err)
}

// GetJobs godoc
//
//	@Summary	List orders open for claiming
//	@Tags		Jobs
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{array}	dto.OrderResponseDTO
//	@Router		/api/jobs [get]
func (h *OrderHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.GetAvailable(r.Context())
	respondOrders(w, orders, err)
}

// GetMyJobs godoc
//
//	@Summary	List orders assigned to the booster
//	@Tags		Jobs
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{array}	dto.OrderResponseDTO
//	@Router		/api/jobs/mine [get]
func (h *OrderHandler) GetMyJobs(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.GetBoosterOrders(r.Context(), actor(r).UserID)
	respondOrders(w, orders, err)
}

// ClaimJob godoc
//
//	@Summary	Claim an order
//	@Tags		Jobs
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Order id"
//	@Success	200	{object}	dto.OrderResponseDTO
//	@Failure	409	{object}	utils.Response	"Order is no longer available"
//	@Router		/api/jobs/{id}/claim [post]
func (h *OrderHandler) ClaimJob(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.Claim(r.Context(), actor(r).UserID, id)
	respondOrder(w, http.StatusOK, order, err)
}

// StartJob godoc
//
//	@Summary	Start working on a claimed order
//	@Tags		Jobs
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Order id"
//	@Success	200	{object}	dto.OrderResponseDTO
//	@Router		/api/jobs/{id}/start [post]
func (h *OrderHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.Start(r.Context(), actor(r).UserID, id)
	respondOrder(w, http.StatusOK, order, err)
}

// CompleteJob godoc
//
//	@Summary		Complete an order
//	@Description	Marks the order completed and releases the booster's earnings. Admins use the same handler.
//	@Tags			Jobs
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Order id"
//	@Success		200	{object}	dto.OrderResponseDTO
//	@Router			/api/jobs/{id}/complete [post]
//	@Router			/api/admin/orders/{id}/complete [post]
func (h *OrderHandler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.Complete(r.Context(), actor(r), id)
	respondOrder(w, http.StatusOK, order, err)
}

// RefundOrder godoc
//
//	@Summary	Refund an order to the customer
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		int	true	"Order id"
//	@Success	200	{object}	dto.OrderResponseDTO
//	@Failure	409	{object}	utils.Response	"Earnings already released"
//	@Router		/api/admin/orders/{id}/refund [post]
func (h *OrderHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.Refund(r.Context(), id)
	respondOrder(w, http.StatusOK, order, err)
}

// ReleaseEarnings godoc
//
//	@Summary		Release a completed order's earnings
//	@Description	Idempotent: released=false means the earnings had already been paid out
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Order id"
//	@Success		200	{object}	dto.ReleaseResponseDTO
//	@Router			/api/admin/orders/{id}/release [post]
func (h *OrderHandler) ReleaseEarnings(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	order, released, err := h.orderService.ReleaseEarnings(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dto.ReleaseResponseDTO{
		Order:    dto.NewOrderResponse(order),
		Released: released,
	})
}
