package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	datasetdomain "github.com/smallbiznis/ndpcatalog/internal/dataset/domain"
)

type packageIDRequest struct {
	ID string `json:"id"`
}

func (s *Server) CreatePackage(c *gin.Context) {
	s.writePackage(c, s.datasetSvc.Create)
}

func (s *Server) UpdatePackage(c *gin.Context) {
	s.writePackage(c, s.datasetSvc.Update)
}

type packageAction func(ctx context.Context, actx datasetdomain.ActionContext, data datasetdomain.Dict) (datasetdomain.Dict, error)

// writePackage ensures the owning organization before running a create or update.
func (s *Server) writePackage(c *gin.Context, action packageAction) {
	var data datasetdomain.Dict
	if err := c.ShouldBindJSON(&data); err != nil || data == nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account := currentAccount(c)
	ctx := c.Request.Context()

	if ref, ok := data["owner_org"].(string); ok && strings.TrimSpace(ref) != "" {
		org, err := s.orgSvc.EnsureLocal(ctx, account, ref)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		data["owner_org"] = org.Name
	}

	result, err := action(ctx, datasetdomain.ActionContext{Account: account}, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) DeletePackage(c *gin.Context) {
	id, ok := bindPackageID(c)
	if !ok {
		return
	}
	if err := s.datasetSvc.Delete(c.Request.Context(), datasetdomain.ActionContext{Account: currentAccount(c)}, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.String(http.StatusOK, fmt.Sprintf("The package '%s' is deleted.", id))
}

func (s *Server) PurgePackage(c *gin.Context) {
	id, ok := bindPackageID(c)
	if !ok {
		return
	}
	if err := s.datasetSvc.Purge(c.Request.Context(), datasetdomain.ActionContext{Account: currentAccount(c)}, id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.String(http.StatusOK, fmt.Sprintf("The package '%s' is purged.", id))
}

// MyPackageList returns up to MaxRows datasets created by the caller.
func (s *Server) MyPackageList(c *gin.Context) {
	account := currentAccount(c)
	result, err := s.datasetSvc.Search(c.Request.Context(), datasetdomain.ActionContext{Account: account}, datasetdomain.SearchRequest{
		Q:    "creator_user_id:" + account.ID.String(),
		Rows: datasetdomain.MaxRows,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bindPackageID(c *gin.Context) (string, bool) {
	var req packageIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return "", false
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		AbortWithError(c, newValidationError("id", "required", "id is required"))
		return "", false
	}
	return id, true
}
