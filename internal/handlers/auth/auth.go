package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/GlebRadaev/boostmarket/internal/domain"
	"github.com/GlebRadaev/boostmarket/internal/dto"
	"github.com/GlebRadaev/boostmarket/internal/service/authservice"
	"github.com/GlebRadaev/boostmarket/internal/service/otpservice"
	"github.com/GlebRadaev/boostmarket/pkg/auth"
	"github.com/GlebRadaev/boostmarket/pkg/utils"
)

type Service interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, login, password string) (*domain.User, error)
	GenerateToken(user *domain.User) (string, error)
}

type OTPService interface {
	SendEmailVerification(ctx context.Context, userID int) error
	VerifyEmail(ctx context.Context, userID int, code string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, password string) error
	RequestEmailChange(ctx context.Context, userID int, newEmail string) error
	ConfirmEmailChange(ctx context.Context, userID int, newEmail, code string) error
}

type AuthHandler struct {
	authService Service
	otpService  OTPService
}

func New(authService Service, otpService OTPService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		otpService:  otpService,
	}
}

// Register godoc
//
//	@Summary		Register a new user
//	@Description	Create a customer account and return a JWT
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.RegisterRequestDTO	true	"Register request body"
//	@Success		200		{object}	dto.AuthResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		409		{object}	utils.Response	"Username or email already taken"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/user/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.authService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authservice.ErrInvalidUsername),
			errors.Is(err, authservice.ErrInvalidEmail),
			errors.Is(err, authservice.ErrInvalidPassword):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, authservice.ErrUsernameTaken), errors.Is(err, authservice.ErrEmailTaken):
			utils.RespondWithError(w, http.StatusConflict, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.respondWithToken(w, user, "User successfully registered")
}

// Login godoc
//
//	@Summary		Authenticate user
//	@Description	Log in with username or email and get a JWT
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.LoginRequestDTO	true	"Login request body"
//	@Success		200		{object}	dto.AuthResponseDTO
//	@Failure		400		{object}	utils.Response	"Invalid request body"
//	@Failure		401		{object}	utils.Response	"Invalid credentials"
//	@Failure		500		{object}	utils.Response	"Internal server error"
//	@Router			/api/user/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.authService.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, authservice.ErrInvalidCredentials) {
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.respondWithToken(w, user, "User successfully authenticated")
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, user *domain.User, message string) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error generating token")
		return
	}
	w.Header().Set("Authorization", "Bearer "+token)
	utils.RespondWithJSON(w, http.StatusOK, dto.AuthResponseDTO{
		Message: message,
		Token:   token,
		Role:    user.Role,
	})
}

// SendVerification godoc
//
//	@Summary	Mail an email verification code
//	@Tags		Auth
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	utils.Response
//	@Failure	409	{object}	utils.Response	"Email already verified"
//	@Router		/api/user/email/verify/send [post]
func (h *AuthHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	userID, _, _ := auth.FromContext(r.Context())
	if err := h.otpService.SendEmailVerification(r.Context(), userID); err != nil {
		respondOTPError(w, err)
		return
	}
	utils.RespondWithMessage(w, http.StatusOK, "Verification code sent")
}

// VerifyEmail godoc
//
//	@Summary	Confirm the email address with a mailed code
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		dto.VerifyEmailRequestDTO	true	"Code"
//	@Success	200		{object}	utils.Response
//	@Failure	400		{object}	utils.Response	"Invalid or expired code"
//	@Failure	429		{object}	utils.Response	"Too many attempts"
//	@Router		/api/user/email/verify [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, _, _ := auth.FromContext(r.Context())
	if err := h.otpService.VerifyEmail(r.Context(), userID, req.Code); err != nil {
		respondOTPError(w, err)
		return
	}
	utils.RespondWithMessage(w, http.StatusOK, "Email verified")
}

// ForgotPassword godoc
//
//	@Summary		Request a password reset code
//	@Description	Always answers 200 so registered addresses cannot be enumerated
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.ForgotPasswordRequestDTO	true	"Email"
//	@Success		200		{object}	utils.Response
//	@Router			/api/user/password/forgot [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.otpService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondOTPError(w, err)
		return
	}
	utils.RespondWithMessage(w, http.StatusOK, "If the email is registered, a code has been sent")
}

// ResetPassword godoc
//
//	@Summary	Set a new password with a mailed code
//	@Tags		Auth
//	@Accept		json
//	@Produce	json
//	@Param		request	body		dto.ResetPasswordRequestDTO	true	"Reset request"
//	@Success	200		{object}	utils.Response
//	@Failure	400		{object}	utils.Response	"Invalid code or password"
//	@Failure	429		{object}	utils.Response	"Too many attempts"
//	@Router		/api/user/password/reset [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.otpService.ResetPassword(r.Context(), req.Email, req.Code, req.Password); err != nil {
		respondOTPError(w, err)
		return
	}
	utils.RespondWithMessage(w, http.StatusOK, "Password updated")
}

// ChangeEmail godoc
//
//	@Summary		Change the account email
//	@Description	Without a code a confirmation code is mailed to the new address; with a code the change is applied
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		dto.ChangeEmailRequestDTO	true	"New email"
//	@Success		200		{object}	utils.Response
//	@Failure		400		{object}	utils.Response	"Invalid email or code"
//	@Failure		409		{object}	utils.Response	"Email already registered"
//	@Router			/api/user/email/change [post]
func (h *AuthHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangeEmailRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, _, _ := auth.FromContext(r.Context())

	if req.Code == "" {
		if err := h.otpService.RequestEmailChange(r.Context(), userID, req.Email); err != nil {
			respondOTPError(w, err)
			return
		}
		utils.RespondWithMessage(w, http.StatusOK, "Confirmation code sent")
		return
	}
	if err := h.otpService.ConfirmEmailChange(r.Context(), userID, req.Email, req.Code); err != nil {
		respondOTPError(w, err)
		return
	}
	utils.RespondWithMessage(w, http.StatusOK, "Email updated")
}

func respondOTPError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, otpservice.ErrInvalidCode),
		errors.Is(err, otpservice.ErrInvalidPassword),
		errors.Is(err, otpservice.ErrInvalidEmail):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, otpservice.ErrTooManyAttempts):
		utils.RespondWithError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, otpservice.ErrAlreadyVerified), errors.Is(err, otpservice.ErrEmailTaken):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, otpservice.ErrUserNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
