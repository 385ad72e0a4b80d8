package controllers

import (
	"bytes"
	"net/http"
	"strings"

	"inksnap-backend/apperrors"
	"inksnap-backend/gateway"
	"inksnap-backend/utils"

	"github.com/gin-gonic/gin"
)

// UploadController exposes file storage directly. Objects are stored under the
// uploader's id and only the uploader may delete them.
type UploadController struct {
	Storage gateway.Storage
}

func (h *UploadController) Upload(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	file, err := formImage(c, "file")
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	if file == nil {
		utils.RespondWithAppError(c, apperrors.Upload("no file provided", nil))
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = file.Name
	}
	obj, err := h.Storage.Upload(c.Request.Context(), gateway.UploadInput{
		Folder: identity.ID.String(),
		Name:   name,
		Body:   bytes.NewReader(file.Data),
	})
	if err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, obj)
}

func (h *UploadController) Delete(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	if !strings.HasPrefix(ref, identity.ID.String()+"/") {
		utils.RespondWithAppError(c, apperrors.Authorization("file belongs to another identity"))
		return
	}
	if err := h.Storage.Delete(c.Request.Context(), ref); err != nil {
		utils.RespondWithAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
