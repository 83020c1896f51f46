package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) HandleStatus(c *gin.Context) {
	ctx, cancelFunc := s.requestContext(c)
	defer cancelFunc()

	if err := s.store.TestConnection(ctx); err != nil {
		s.logger.Error("failed to connect to the database", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "failed to connect to the database"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) HandleStats(c *gin.Context) {
	ctx, cancelFunc := s.requestContext(c)
	defer cancelFunc()

	count, err := s.store.Count(ctx)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": count})
}
