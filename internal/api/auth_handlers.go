package api

import (
	"net/http"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type adminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterHandler creates a student account and signs it in.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Auth.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Registration successful", result)
}

// LoginHandler signs a student in by e-mail or matric number.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Auth.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", result)
}

func (h *Handlers) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Auth.AdminLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successful", result)
}

// RegisterAdminHandler lets an admin create another admin account.
func (h *Handlers) RegisterAdminHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	var req domain.AdminSignupInput
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.svc.Auth.RegisterAdmin(r.Context(), actor.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Admin created", user)
}

func (h *Handlers) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tokens, err := h.svc.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", tokens)
}

func (h *Handlers) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Auth.VerifyEmail(r.Context(), req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "E-mail verified", nil)
}

// ForgotPasswordHandler always answers the same way so accounts cannot be probed.
func (h *Handlers) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Auth.ForgotPassword(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "If an account exists for this e-mail, a reset link has been sent", nil)
}

func (h *Handlers) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password reset successful", nil)
}

func (h *Handlers) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req changePasswordRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Auth.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password changed", nil)
}

func (h *Handlers) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	profile, err := h.svc.Auth.Profile(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", profile)
}

func (h *Handlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req domain.ProfileUpdate
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	profile, err := h.svc.Auth.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Profile updated", profile)
}
