package controllers

import (
	"net/http"

	"inksnap-backend/apperrors"
	"inksnap-backend/models"
	"inksnap-backend/services"
	"inksnap-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationController struct {
	Deps   services.Deps
	Sender *services.MessageSender
}

type StartConversationInput struct {
	OtherID uuid.UUID `json:"other_id" binding:"required"`
}

func (h *ConversationController) List(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	directory := services.NewConversationDirectory(h.Deps.Store, services.NewUnreadCounter(h.Deps.Store, identity.ID), identity.ID)
	list, err := directory.List(c.Request.Context())
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

func (h *ConversationController) Start(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var input StartConversationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	directory := services.NewConversationDirectory(h.Deps.Store, services.NewUnreadCounter(h.Deps.Store, identity.ID), identity.ID)
	conv, err := directory.StartOrGet(c.Request.Context(), input.OtherID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// participantConversation loads the conversation in the path and checks the caller is in it.
func (h *ConversationController) participantConversation(c *gin.Context, identity *utils.Identity) (*models.Conversation, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return nil, false
	}
	conv, err := h.Deps.Store.GetConversation(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return nil, false
	}
	if !conv.HasParticipant(identity.ID) {
		utils.RespondWithAppError(c, apperrors.ErrNotParticipant)
		return nil, false
	}
	return conv, true
}

func (h *ConversationController) Messages(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	conv, ok := h.participantConversation(c, identity)
	if !ok {
		return
	}
	messages, err := h.Deps.Store.ListMessages(c.Request.Context(), conv.ID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// Send accepts multipart with an optional "content" field and "image" file.
func (h *ConversationController) Send(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	conv, ok := h.participantConversation(c, identity)
	if !ok {
		return
	}
	image, err := formImage(c, "image")
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	msg, err := h.Sender.Send(c.Request.Context(), conv, identity.ID, c.PostForm("content"), image)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *ConversationController) MarkRead(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	conv, ok := h.participantConversation(c, identity)
	if !ok {
		return
	}
	marked, err := h.Deps.Store.MarkConversationRead(c.Request.Context(), conv.ID, identity.ID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	unread, err := h.Deps.Store.CountUnread(c.Request.Context(), identity.ID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked, "unread": unread})
}

func (h *ConversationController) Unread(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	unread, err := services.NewUnreadCounter(h.Deps.Store, identity.ID).Refresh(c.Request.Context())
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": unread})
}
