package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"video-splitter/constant"
	"video-splitter/dto"
	"video-splitter/pkg/storage"
	"video-splitter/repository"
	"video-splitter/service"
)

// classify maps a service error to the status code and message shown to the
// client. Internal detail is only exposed for segmentation failures.
func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large. Maximum size is %d MB", tooLarge.Limit/constant.MiB)
	case errors.Is(err, service.ErrNoFile):
		return http.StatusBadRequest, "No file selected"
	case errors.Is(err, service.ErrUnsupportedFormat):
		return http.StatusBadRequest, "File type not allowed. " + constant.AllowedFormatsMessage
	case errors.Is(err, service.ErrDurationUnknown):
		return http.StatusBadRequest, "Could not process video file. Please try another format."
	case errors.Is(err, service.ErrSegmentation):
		return http.StatusBadRequest, "Video processing failed: " + detail(err, service.ErrSegmentation)
	case errors.Is(err, service.ErrInvalidObject):
		return http.StatusBadRequest, "Object name does not match session"
	case errors.Is(err, service.ErrSessionInUse):
		return http.StatusConflict, "Session already processing or completed"
	case errors.Is(err, service.ErrArchiveNotFound):
		return http.StatusNotFound, "File not found or expired"
	case errors.Is(err, repository.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "Video not found in storage"
	case errors.Is(err, storage.ErrNotAuthorized):
		return http.StatusUnauthorized, "Storage not authorized"
	case errors.Is(err, storage.ErrNotConfigured):
		return http.StatusInternalServerError, "S3 storage not configured"
	case errors.Is(err, service.ErrPackaging):
		return http.StatusInternalServerError, "Failed to create download package"
	case errors.Is(err, service.ErrStorage):
		return http.StatusInternalServerError, "Storage operation failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: msg})
}

func respondDriveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Google Drive not configured"})
	case errors.Is(err, storage.ErrNotAuthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Google Drive not authorized. Visit /authorize first"})
	default:
		respondError(c, err)
	}
}

// detail returns the causes joined to sentinel, without the sentinel itself.
func detail(err, sentinel error) string {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return err.Error()
	}
	var parts []string
	for _, e := range joined.Unwrap() {
		if e != sentinel {
			parts = append(parts, e.Error())
		}
	}
	return strings.Join(parts, "; ")
}
