package controllers

import (
	"net/http"

	"inksnap-backend/services"
	"inksnap-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProfileController struct {
	Profiles *services.ProfileService
	Reviews  *services.ReviewService
	Follows  *services.FollowService
	Posts    *services.PostService
}

type CreateReviewInput struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

func (h *ProfileController) Artist(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	artistID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	page, err := h.Profiles.Artist(c.Request.Context(), identity.ID, artistID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ProfileController) Dashboard(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	dash, err := h.Profiles.Dashboard(c.Request.Context(), identity)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *ProfileController) ListReviews(c *gin.Context) {
	artistID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	reviews, err := h.Reviews.List(c.Request.Context(), artistID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

func (h *ProfileController) CreateReview(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	artistID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var input CreateReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	review, err := h.Reviews.Create(c.Request.Context(), identity.ID, artistID, input.Rating, input.Comment)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *ProfileController) Follow(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Follows.Follow(c.Request.Context(), identity.ID, id); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	h.respondFollowers(c, id, true)
}

func (h *ProfileController) Unfollow(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Follows.Unfollow(c.Request.Context(), identity.ID, id); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	h.respondFollowers(c, id, false)
}

func (h *ProfileController) respondFollowers(c *gin.Context, id uuid.UUID, following bool) {
	n, err := h.Follows.Followers(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": following, "followers": n})
}

func (h *ProfileController) ListPosts(c *gin.Context) {
	artistID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	posts, err := h.Posts.List(c.Request.Context(), artistID)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// CreatePost accepts multipart with a required "image" file and an optional "caption".
func (h *ProfileController) CreatePost(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	me, err := h.Profiles.Me(c.Request.Context(), identity)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	if !me.IsArtist {
		utils.RespondWithError(c, http.StatusForbidden, "Only artists can post to a portfolio")
		return
	}
	image, err := formImage(c, "image")
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}

	post, err := h.Posts.Create(c.Request.Context(), identity.ID, c.PostForm("caption"), image)
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *ProfileController) DeletePost(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Posts.Delete(c.Request.Context(), identity.ID, id); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
