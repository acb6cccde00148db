package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/mira/outfitadvisor/internal/api/middleware"
	"github.com/mira/outfitadvisor/internal/domain"
	"github.com/mira/outfitadvisor/internal/service"
)

// maxImageBytes bounds the uploaded garment image size.
const maxImageBytes = 10 << 20

// noRecommendationMessage is shown when the model reply cannot be turned
// into three options. The user can retry with a different image or question.
const noRecommendationMessage = "No fashion recommendation could be made for this image and question. Please try again."

// RecommendHandler handles the recommendation endpoint.
type RecommendHandler struct {
	recommendService *service.RecommendService
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(recommendService *service.RecommendService) *RecommendHandler {
	return &RecommendHandler{
		recommendService: recommendService,
	}
}

// Recommend handles POST /api/v1/recommendations. The request is a multipart
// form with an "image" file and a "question" text field.
func (h *RecommendHandler) Recommend(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "An image file is required in the 'image' field",
		})
		return
	}
	if fileHeader.Size > maxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Image is too large, the limit is 10MB",
		})
		return
	}

	question := c.PostForm("question")
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "A question is required in the 'question' field",
		})
		return
	}
	if utf8.RuneCountInString(question) > domain.MaxQuestionLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Question is too long, the limit is 500 characters",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read the uploaded image",
		})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read the uploaded image",
		})
		return
	}

	req := &domain.RecommendationRequest{
		Image: domain.UploadedImage{
			Data:     imageData,
			Filename: filepath.Base(fileHeader.Filename),
		},
		Question: question,
	}

	result, err := h.recommendService.Recommend(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeError maps pipeline error kinds to HTTP statuses. Wrapped detail goes
// to the log, not the client.
func (h *RecommendHandler) writeError(c *gin.Context, err error) {
	log := middleware.GetLogger(c)

	switch {
	case errors.Is(err, domain.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Please upload a valid image of a fashion item",
		})
	case errors.Is(err, domain.ErrMissingOptions), errors.Is(err, domain.ErrMalformedResponse):
		log.WithError(err).Warn("Recommendation rejected: unusable completion reply")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": noRecommendationMessage,
		})
	case errors.Is(err, domain.ErrIndexNotReady):
		log.WithError(err).Error("Recommendation failed: index not ready")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "The product index is not available right now. Please try again shortly.",
		})
	default:
		log.WithError(err).Error("Recommendation failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Recommendation failed. Please try again.",
		})
	}
}
