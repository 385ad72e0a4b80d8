package controllers

import (
	"errors"
	"io"
	"net/http"

	"inksnap-backend/apperrors"
	"inksnap-backend/services"
	"inksnap-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxFormImage bounds the multipart image read; storage enforces its own limit too.
const maxFormImage = 20 << 20

func currentIdentity(c *gin.Context) (*utils.Identity, bool) {
	identity, ok := utils.CurrentIdentity(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Identity not found in context")
		return nil, false
	}
	return identity, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// formImage reads the optional image part of a multipart request.
func formImage(c *gin.Context, field string) (*services.Attachment, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Upload("could not read "+field, err)
	}
	f, err := header.Open()
	if err != nil {
		return nil, apperrors.Upload("could not read "+field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFormImage+1))
	if err != nil {
		return nil, apperrors.Upload("could not read "+field, err)
	}
	if len(data) > maxFormImage {
		return nil, apperrors.Upload("file is too large", nil)
	}
	return &services.Attachment{Name: header.Filename, Data: data}, nil
}
