package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vetscan-backend/internal/models"
)

const apiVersion = "1.0.0"

func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Version: apiVersion,
	})
}
