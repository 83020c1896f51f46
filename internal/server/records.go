package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/RyanW02/waterledger/pkg/digest"
	"github.com/RyanW02/waterledger/pkg/offchain"
	"github.com/gin-gonic/gin"
)

type SubmitResponse struct {
	Id        offchain.RecordId `json:"id"`
	Locator   offchain.Locator  `json:"locator"`
	Digest    digest.Digest     `json:"digest"`
	Canonical string            `json:"canonical"`
}

func (s *Server) HandleSubmit(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}

		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}

	ctx, cancelFunc := s.requestContext(c)
	defer cancelFunc()

	record, locator, err := s.store.PutJSON(ctx, body)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitResponse{
		Id:        record.Id,
		Locator:   locator,
		Digest:    record.Digest,
		Canonical: string(record.Canonical),
	})
}

func (s *Server) HandleGetRecord(c *gin.Context) {
	id, ok := parseId(c, "id")
	if !ok {
		return
	}

	ctx, cancelFunc := s.requestContext(c)
	defer cancelFunc()

	record, err := s.store.Get(ctx, offchain.RecordId(id))
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// parseId writes a 400 response and returns false if the parameter is not a positive integer.
func parseId(c *gin.Context, param string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}

	return id, true
}
