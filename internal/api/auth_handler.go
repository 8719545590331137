package api

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/service"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves signup, login and session endpoints.
type AuthHandler struct {
	services *Services
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(services *Services) *AuthHandler {
	return &AuthHandler{services: services}
}

// --- Request/Response Structs ---

type SignupRequest struct {
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Password     string          `json:"password"`
	UserType     domain.UserType `json:"userType"`
	ReferralCode string          `json:"referralCode"`
}

type SignupResponse struct {
	Token        string          `json:"token"`
	UID          string          `json:"uid"`
	UserType     domain.UserType `json:"userType"`
	ReferralCode string          `json:"referralCode,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse is the public view of a profile.
type UserResponse struct {
	UID          string          `json:"uid"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	UserType     domain.UserType `json:"userType"`
	ReferralCode string          `json:"referralCode,omitempty"`
	PersonalID   string          `json:"personalId,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type ReferralCodeResponse struct {
	Found       bool   `json:"found"`
	TrainerID   string `json:"trainerId,omitempty"`
	TrainerName string `json:"trainerName,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// --- Handler Methods ---

// Signup creates the account and profile and returns a session token.
// Field validation is left to the service so that every problem is reported
// at once.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	client := h.services.Directory.NewClient()
	res := h.services.auth(client).Signup(c.Request.Context(), service.SignupInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		UserType:     req.UserType,
		ReferralCode: req.ReferralCode,
	})
	if !res.Success {
		if res.Kind == service.KindOrphanedAccount {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": res.Error, "kind": res.Kind, "uid": res.UID})
			return
		}
		h.services.abortWithResult(c, service.Result{Kind: res.Kind, Error: res.Error})
		return
	}

	token, err := client.Token()
	if err != nil {
		h.services.Deps.Logger.Error("failed to issue token after signup", "uid", res.UID, "error", err)
		abortWithError(c, http.StatusInternalServerError, "Account created but the session could not be issued. Please log in.")
		return
	}
	c.JSON(http.StatusCreated, SignupResponse{
		Token:        token,
		UID:          res.UID,
		UserType:     res.UserType,
		ReferralCode: res.ReferralCode,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	client := h.services.Directory.NewClient()
	auth := h.services.auth(client)
	res := auth.Login(c.Request.Context(), req.Email, req.Password)
	if !res.Success {
		if res.Kind == service.KindIdentity {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": res.Error, "kind": res.Kind})
			return
		}
		h.services.abortWithResult(c, service.Result{Kind: res.Kind, Error: res.Error})
		return
	}

	profile, err := auth.CurrentProfile(c.Request.Context())
	if err != nil {
		h.services.abortWithServiceError(c, err, "Could not load user profile")
		return
	}
	token, err := client.Token()
	if err != nil {
		h.services.Deps.Logger.Error("failed to issue token", "uid", res.UID, "error", err)
		abortWithError(c, http.StatusInternalServerError, "Could not process login")
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: MapUserToResponse(profile)})
}

// Logout ends the request's session. Issued tokens stay valid until they
// expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	res := h.services.auth(h.services.client(c)).Logout(c.Request.Context())
	if !res.Success {
		h.services.abortWithResult(c, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	profile, err := h.services.auth(h.services.client(c)).CurrentProfile(c.Request.Context())
	if err != nil {
		h.services.abortWithServiceError(c, err, "Could not load user profile")
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(profile))
}

// ResolveReferralCode answers 404 with the reason when no trainer owns the
// code.
func (h *AuthHandler) ResolveReferralCode(c *gin.Context) {
	check := h.services.auth(h.services.Directory.NewClient()).ResolveReferralCode(c.Request.Context(), c.Param("code"))
	resp := ReferralCodeResponse{
		Found:       check.Found,
		TrainerID:   check.TrainerID,
		TrainerName: check.TrainerName,
		Reason:      check.Reason,
	}
	if !check.Found {
		c.JSON(http.StatusNotFound, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MapUserToResponse converts a domain User to a UserResponse DTO.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		UID:          user.UID,
		Name:         user.Name,
		Email:        user.Email,
		UserType:     user.UserType,
		ReferralCode: user.ReferralCode,
		PersonalID:   user.PersonalID,
		CreatedAt:    user.CreatedAt,
	}
}

// MapUsersToResponse converts a slice of domain.User to UserResponse DTOs.
func MapUsersToResponse(users []domain.User) []UserResponse {
	responses := make([]UserResponse, len(users))
	for i := range users {
		responses[i] = MapUserToResponse(&users[i])
	}
	return responses
}
