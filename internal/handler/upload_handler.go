package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"adwall/internal/middleware"
	"adwall/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 50 << 20

type UploadHandler struct {
	cloud cloudinary.Client
}

func NewUploadHandler(cloud cloudinary.Client) *UploadHandler {
	return &UploadHandler{cloud: cloud}
}

// Upload stores an ad media file and returns its delivery URL. Videos are
// routed by content type; everything else is treated as an image.
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media uploads not configured"})
		return
	}
	userID := middleware.GetUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	folder := "adwall/ads/" + strconv.FormatUint(uint64(userID), 10)
	publicID := "media_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	contentType := file.Header.Get("Content-Type")
	var url string
	var kind string
	if strings.HasPrefix(contentType, "video/") {
		url, err = h.cloud.UploadVideo(c.Request.Context(), f, folder, publicID)
		kind = "video"
	} else {
		url, err = h.cloud.UploadImage(c.Request.Context(), f, folder, publicID)
		kind = "image"
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "type": kind})
}
