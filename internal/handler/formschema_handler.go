package handler

import (
	"errors"
	"net/http"

	"adwall/internal/repository"

	"github.com/gin-gonic/gin"
)

type FormSchemaHandler struct {
	repo *repository.SchemaRepository
}

func NewFormSchemaHandler(repo *repository.SchemaRepository) *FormSchemaHandler {
	return &FormSchemaHandler{repo: repo}
}

func (h *FormSchemaHandler) List(c *gin.Context) {
	schemas, err := h.repo.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load form schemas"})
		return
	}
	c.JSON(http.StatusOK, schemas)
}

func (h *FormSchemaHandler) Get(c *gin.Context) {
	schema, err := h.repo.GetBySlug(c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrSchemaNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "form schema not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load form schema"})
		return
	}
	c.JSON(http.StatusOK, schema)
}
