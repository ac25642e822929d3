package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	memberdomain "github.com/parishkit/steward/internal/member/domain"
)

func (s *Server) NextRegisterNumber(c *gin.Context) {
	year, err := parseYearParam(c.Query("year"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	next, err := s.registerSvc.NextAvailableNumber(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"year": year, "next_number": next}})
}

func (s *Server) PreviewRegisterNumbers(c *gin.Context) {
	year, err := parseYearParam(c.Query("year"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	preview, err := s.registerSvc.PreviewForYear(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": preview})
}

func (s *Server) GenerateRegisterNumbers(c *gin.Context) {
	var req struct {
		Year int `json:"year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.registerSvc.GenerateForYear(c.Request.Context(), req.Year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "register.generate", "register_year", strconv.Itoa(result.Year), map[string]any{
		"total": result.Total,
	})

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RegisterGenerationStatus(c *gin.Context) {
	year, err := parseYearParam(c.Param("year"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := s.registerSvc.GenerationStatus(c.Request.Context(), year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

func (s *Server) ListMemberRegisterNumbers(c *gin.Context) {
	memberID, err := parseMemberIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries, err := s.registerSvc.HistoryForMember(c.Request.Context(), memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) GetMemberCurrentRegisterNumber(c *gin.Context) {
	memberID, err := parseMemberIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entry, err := s.registerSvc.CurrentNumber(c.Request.Context(), memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func parseYearParam(value string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, newValidationError("year", "invalid_year", "invalid year")
	}
	return year, nil
}

func parseMemberIDParam(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, memberdomain.ErrInvalidID
	}
	return id, nil
}
