package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ApprovePackage(c *gin.Context) {
	id, ok := bindPackageID(c)
	if !ok {
		return
	}
	created, err := s.approvalSvc.Approve(c.Request.Context(), id, currentAccount(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, created)
}

func (s *Server) RejectPackage(c *gin.Context) {
	id, ok := bindPackageID(c)
	if !ok {
		return
	}
	if err := s.approvalSvc.Reject(c.Request.Context(), id, currentAccount(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.String(http.StatusOK, fmt.Sprintf("The dataset '%s' is rejected and purged.", id))
}
