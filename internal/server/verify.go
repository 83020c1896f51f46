package server

import (
	"net/http"

	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"github.com/gin-gonic/gin"
)

type CompareRequest struct {
	OnChainHash string `json:"onChainHash" binding:"required"`
}

// HandleCompare checks a record against a digest read from the ledger by the caller.
func (s *Server) HandleCompare(c *gin.Context) {
	id, ok := parseId(c, "id")
	if !ok {
		return
	}

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	supplied, err := digest.Parse(req.OnChainHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancelFunc := s.requestContext(c)
	defer cancelFunc()

	res, err := s.verifier.Compare(ctx, offchain.RecordId(id), supplied)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// HandleVerify checks the record an anchored event points to against the digest committed on the ledger.
func (s *Server) HandleVerify(c *gin.Context) {
	id, ok := parseId(c, "event_id")
	if !ok {
		return
	}

	ctx, cancelFunc := s.requestContext(c)
	defer cancelFunc()

	res, err := s.verifier.Verify(ctx, audit.EventId(id))
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
