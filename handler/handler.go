package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"video-splitter/constant"
	"video-splitter/dto"
	"video-splitter/pkg/storage"
	"video-splitter/service"
)

const IndexTemplate = "index.html"

type Handler struct {
	svc       service.Service
	s3Enabled bool
	now       func() time.Time
}

func NewHandler(svc service.Service, s3Enabled bool) *Handler {
	return &Handler{svc: svc, s3Enabled: s3Enabled, now: time.Now}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.Index)
	r.POST("/analyze", h.Analyze)
	r.POST("/upload", h.Upload)
	r.POST("/generate_presigned_url", h.GeneratePresignedURL)
	r.POST("/process_video", h.ProcessVideo)
	r.GET("/download/:filename", h.Download)
	r.GET("/api/status", h.Status)
	r.GET("/api/sessions/:id", h.Session)
	r.GET("/authorize", h.Authorize)
	r.GET("/oauth2callback", h.OAuthCallback)
	r.GET("/upload_drive/:filename", h.UploadDrive)
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, IndexTemplate, gin.H{
		"AIEnabled":       h.svc.AIEnabled(),
		"DirectUpload":    h.svc.StorageName() != storage.LocalBackend,
		"Storage":         h.svc.StorageName(),
		"DriveEnabled":    h.svc.DriveEnabled(),
		"DriveAuthorized": h.svc.DriveAuthorized(),
		"Formats":         constant.AllowedFormatsMessage,
	})
}

func (h *Handler) Analyze(c *gin.Context) {
	fh, err := videoFile(c)
	if err != nil {
		respondError(c, err)
		return
	}

	est, err := h.svc.Analyze(c.Request.Context(), fh.Filename, fh.Size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AnalyzeResponse{
		SizeMB:            est.SizeMB,
		EstimatedSegments: est.EstimatedSegments,
		AIAnalysis:        est.Analysis.Value,
		AIEnabled:         h.svc.AIEnabled(),
		AIStatus:          string(est.Analysis.Status),
		Status:            "ready",
	})
}

func (h *Handler) Upload(c *gin.Context) {
	fh, err := videoFile(c)
	if err != nil {
		respondError(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to open multipart file")
		respondError(c, errors.Join(service.ErrStorage, err))
		return
	}
	defer f.Close()

	res, err := h.svc.ProcessUpload(c.Request.Context(), service.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Content:  f,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.uploadResponse(res))
}

func (h *Handler) GeneratePresignedURL(c *gin.Context) {
	var req dto.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, service.ErrNoFile)
		return
	}

	resp, err := h.svc.PresignUpload(c.Request.Context(), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ProcessVideo(c *gin.Context) {
	var req dto.ProcessVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "object_name and session_id are required"})
		return
	}

	res, err := h.svc.ProcessObject(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.uploadResponse(res))
}

func (h *Handler) Download(c *gin.Context) {
	p, err := h.svc.ArchivePath(c.Param("filename"))
	if err != nil {
		respondError(c, err)
		return
	}
	name := fmt.Sprintf("%s%s.zip", constant.DownloadNamePrefix, h.now().Format("20060102_1504"))
	c.FileAttachment(p, name)
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, dto.StatusResponse{
		Status:          "operational",
		AIEnabled:       h.svc.AIEnabled(),
		S3Enabled:       h.s3Enabled,
		Storage:         h.svc.StorageName(),
		DriveEnabled:    h.svc.DriveEnabled(),
		DriveAuthorized: h.svc.DriveAuthorized(),
		Timestamp:       h.now(),
	})
}

func (h *Handler) Session(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid session id"})
		return
	}
	session, err := h.svc.FindSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) Authorize(c *gin.Context) {
	u, err := h.svc.AuthorizeDrive()
	if err != nil {
		respondDriveError(c, err)
		return
	}
	c.Redirect(http.StatusFound, u)
}

func (h *Handler) OAuthCallback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Authorization denied: " + reason})
		return
	}
	if err := h.svc.CompleteDriveAuthorization(c.Request.Context(), c.Query("state"), c.Query("code")); err != nil {
		respondDriveError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) UploadDrive(c *gin.Context) {
	ref, err := h.svc.ExportToDrive(c.Request.Context(), c.Param("filename"))
	if err != nil {
		respondDriveError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DriveUploadResponse{
		Success:  true,
		FileID:   ref.ObjectName,
		Link:     ref.DownloadURL,
		Filename: ref.Filename,
	})
}

func (h *Handler) uploadResponse(res *service.Result) dto.UploadResponse {
	resp := dto.UploadResponse{
		Success:       true,
		SessionID:     res.Session.ID,
		ZipFilename:   res.Reference.Filename,
		SegmentCount:  res.Document.SegmentCount,
		TotalDuration: fmt.Sprintf("%.2f seconds", res.Document.TotalDuration),
		AIAnalysis:    res.Document.AIAnalysis,
		AIEnabled:     h.svc.AIEnabled(),
		AIStatus:      res.Document.AIStatus,
		FileSize:      res.Session.FileSizeBytes,
		DownloadURL:   res.Reference.DownloadURL,
	}
	if !res.Reference.ExpiresAt.IsZero() {
		expires := res.Reference.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// videoFile reads the upload from the "video" field, falling back to "file".
func videoFile(c *gin.Context) (*multipart.FileHeader, error) {
	fh, err := c.FormFile("video")
	if errors.Is(err, http.ErrMissingFile) {
		fh, err = c.FormFile("file")
	}
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, service.ErrNoFile
	}
	if err != nil {
		return nil, err
	}
	if fh.Filename == "" {
		return nil, service.ErrNoFile
	}
	return fh, nil
}
