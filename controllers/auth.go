package controllers

import (
	"net/http"

	"inksnap-backend/services"
	"inksnap-backend/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	Auth     *services.AuthService
	Profiles *services.ProfileService
}

type UpdateReminderTemplateInput struct {
	Message  string `json:"message" binding:"required"`
	IsActive *bool  `json:"is_active"`
}

func (h *AuthController) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	result, err := h.Auth.Register(c.Request.Context(), input)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *AuthController) Login(c *gin.Context) {
	var input services.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), input)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AuthController) Me(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	profile, err := h.Profiles.Me(c.Request.Context(), identity)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (h *AuthController) UpdateProfile(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var input services.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	profile, err := h.Profiles.Update(c.Request.Context(), identity.ID, input)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}

func (h *AuthController) UpdateReminderTemplate(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var input UpdateReminderTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	tpl, err := h.Profiles.SaveReminderTemplate(c.Request.Context(), identity.ID, input.Message, active)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

// DeleteAccount is irreversible.
func (h *AuthController) DeleteAccount(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.Profiles.DeleteAccount(c.Request.Context(), identity.ID); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
