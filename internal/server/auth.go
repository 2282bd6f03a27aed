package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/factura-ai/invoice-extractor/internal/common"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// Login checks credentials against the user store. Failed lookups and bad
// secrets return the same response so the endpoint does not leak which
// identifiers exist.
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortWithError(c, common.NewInvalidInput("invalid login payload"))
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Secret == "" {
		s.abortWithError(c, common.NewInvalidInput("identifier and secret are required"))
		return
	}

	user, err := s.users.FindByIdentifier(c.Request.Context(), req.Identifier)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && errors.Is(appErr.Kind, common.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		s.abortWithError(c, err)
		return
	}

	if !user.Active || !user.CheckSecret(req.Secret) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
