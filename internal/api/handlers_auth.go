package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradesphere/internal/auth"
	"tradesphere/internal/models"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) registerHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if existing, err := s.store.GetUserByUsername(ctx, req.Username); err != nil {
		s.writeError(c, err)
		return
	} else if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		return
	}
	if existing, err := s.store.GetUserByEmail(ctx, req.Email); err != nil {
		s.writeError(c, err)
		return
	} else if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Tier:         models.TierBeginner,
		CashBalance:  s.initialCash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		s.writeError(c, err)
		return
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("user registered", zap.String("username", user.Username))
	c.JSON(http.StatusCreated, tokenResponse{Token: token, User: user})
}

func (s *Server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.tokens.IssueToken(user)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token, User: user})
}
