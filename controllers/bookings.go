package controllers

import (
	"net/http"
	"strings"
	"time"

	"inksnap-backend/models"
	"inksnap-backend/services"
	"inksnap-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingController struct {
	Deps services.Deps
}

func (h *BookingController) tracker(identity *utils.Identity) *services.BookingTracker {
	return services.NewBookingTracker(h.Deps.Store, h.Deps.Storage, identity.ID, h.Deps.Logger)
}

func (h *BookingController) ListForArtist(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	bookings, err := h.tracker(identity).ListForArtist(c.Request.Context(), identity.ID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func (h *BookingController) ListForClient(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	bookings, err := h.tracker(identity).ListForClient(c.Request.Context(), identity.ID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// Between backs the booking summary shown next to a conversation.
func (h *BookingController) Between(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	other, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	bookings, err := h.tracker(identity).Between(c.Request.Context(), other)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// Create accepts multipart: artist_id, requested_at, service, notes,
// client_phone, convention_date_id and an optional reference image.
func (h *BookingController) Create(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	artistID, err := uuid.Parse(c.PostForm("artist_id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid artist_id")
		return
	}
	req := services.BookingRequest{
		ArtistID:    artistID,
		Service:     c.PostForm("service"),
		Notes:       c.PostForm("notes"),
		ClientPhone: c.PostForm("client_phone"),
	}
	if raw := strings.TrimSpace(c.PostForm("requested_at")); raw != "" {
		at, err := parseRequestedAt(raw)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "requested_at must look like 2025-06-01T14:00 or be an RFC 3339 timestamp")
			return
		}
		req.RequestedAt = &at
	}
	if raw := strings.TrimSpace(c.PostForm("convention_date_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid convention_date_id")
			return
		}
		req.ConventionDateID = &id
	}
	if req.Attachment, err = formImage(c, "image"); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	booking, err := h.tracker(identity).Create(c.Request.Context(), req)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// requestedAtLayouts are tried in order. Values without an offset are read as UTC.
var requestedAtLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

func parseRequestedAt(raw string) (time.Time, error) {
	var err error
	for _, layout := range requestedAtLayouts {
		var at time.Time
		if at, err = time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return at, nil
		}
	}
	return time.Time{}, err
}

// Transition handles POST /bookings/:id/:action with action confirm, decline or cancel.
func (h *BookingController) Transition(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.tracker(identity).Transition(c.Request.Context(), id, models.BookingAction(c.Param("action")))
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
