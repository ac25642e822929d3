package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListMembershipStatuses(c *gin.Context) {
	statuses, err := s.refrepo.ListStatuses(c.Request.Context(), s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": statuses})
}

func (s *Server) ListRoleTypes(c *gin.Context) {
	roleTypes, err := s.refrepo.ListRoleTypes(c.Request.Context(), s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": roleTypes})
}

func (s *Server) ListDistricts(c *gin.Context) {
	districts, err := s.refrepo.ListDistricts(c.Request.Context(), s.db)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": districts})
}
