package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"screenlens/services"
)

type AccountHandler struct {
	provider services.ModelProvider
}

func NewAccountHandler(provider services.ModelProvider) *AccountHandler {
	return &AccountHandler{provider: provider}
}

func (h *AccountHandler) Get(c *gin.Context) {
	info, err := h.provider.AccountInfo(c.Request.Context())
	if err != nil {
		log.Printf("Account info error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}
