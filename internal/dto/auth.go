package dto

type RegisterRequestDTO struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
}

type LoginRequestDTO struct {
	Login    string `json:"login" example:"alice"`
	Password string `json:"password" example:"s3cret-pass"`
}

type AuthResponseDTO struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	Role    string `json:"role" example:"CUSTOMER"`
}

type VerifyEmailRequestDTO struct {
	Code string `json:"code" example:"042917"`
}

type ForgotPasswordRequestDTO struct {
	Email string `json:"email" example:"alice@example.com"`
}

type ResetPasswordRequestDTO struct {
	Email    string `json:"email" example:"alice@example.com"`
	Code     string `json:"code" example:"042917"`
	Password string `json:"password" example:"new-s3cret-pass"`
}

type ChangeEmailRequestDTO struct {
	Email string `json:"email" example:"alice@new.example.com"`
	Code  string `json:"code,omitempty" example:"042917"`
}
