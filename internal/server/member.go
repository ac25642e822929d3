package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	memberdomain "github.com/parishkit/steward/internal/member/domain"
)

type addressRequest struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	City     string `json:"city"`
	County   string `json:"county"`
	Postcode string `json:"postcode"`
}

type memberRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	JoinDate    string `json:"join_date"`
	DateOfBirth string `json:"date_of_birth"`

	Baptised     bool `json:"baptised"`
	GiftAid      bool `json:"gift_aid"`
	PastoralCare bool `json:"pastoral_care"`

	StatusID    string   `json:"status_id"`
	DistrictID  string   `json:"district_id"`
	RoleTypeIDs []string `json:"role_type_ids"`

	GivingReference string `json:"giving_reference"`
	RegisterNumber  string `json:"register_number"`

	Address addressRequest `json:"address"`
}

func (s *Server) CreateMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	joinDate, dateOfBirth, err := parseMemberDates(req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.memberSvc.Create(c.Request.Context(), memberdomain.CreateMemberRequest{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		JoinDate:        joinDate,
		DateOfBirth:     dateOfBirth,
		Baptised:        req.Baptised,
		GiftAid:         req.GiftAid,
		PastoralCare:    req.PastoralCare,
		StatusID:        req.StatusID,
		DistrictID:      req.DistrictID,
		RoleTypeIDs:     req.RoleTypeIDs,
		GivingReference: req.GivingReference,
		RegisterNumber:  req.RegisterNumber,
		Address:         addressInput(req.Address),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "member.create", "member", resp.ID.String(), map[string]any{
		"first_name": resp.FirstName,
		"last_name":  resp.LastName,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateMember(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	joinDate, dateOfBirth, err := parseMemberDates(req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.memberSvc.Update(c.Request.Context(), id, memberdomain.UpdateMemberRequest{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		JoinDate:        joinDate,
		DateOfBirth:     dateOfBirth,
		Baptised:        req.Baptised,
		GiftAid:         req.GiftAid,
		PastoralCare:    req.PastoralCare,
		StatusID:        req.StatusID,
		DistrictID:      req.DistrictID,
		RoleTypeIDs:     req.RoleTypeIDs,
		GivingReference: req.GivingReference,
		RegisterNumber:  req.RegisterNumber,
		Address:         addressInput(req.Address),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "member.update", "member", resp.ID.String(), map[string]any{
		"first_name": resp.FirstName,
		"last_name":  resp.LastName,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteMember(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if err := s.memberSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, "member.delete", "member", id, nil)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

func (s *Server) GetMember(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	resp, err := s.memberSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMembers(c *gin.Context) {
	var query struct {
		Name       string `form:"name"`
		StatusID   string `form:"status_id"`
		DistrictID string `form:"district_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.memberSvc.List(c.Request.Context(), memberdomain.ListMemberRequest{
		Name:       strings.TrimSpace(query.Name),
		StatusID:   strings.TrimSpace(query.StatusID),
		DistrictID: strings.TrimSpace(query.DistrictID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseMemberDates(req memberRequest) (time.Time, *time.Time, error) {
	joinDate, err := parseDate(req.JoinDate)
	if err != nil {
		return time.Time{}, nil, newValidationError("join_date", "invalid_join_date", "invalid join_date")
	}

	var dateOfBirth *time.Time
	if strings.TrimSpace(req.DateOfBirth) != "" {
		parsed, err := parseDate(req.DateOfBirth)
		if err != nil {
			return time.Time{}, nil, newValidationError("date_of_birth", "invalid_date_of_birth", "invalid date_of_birth")
		}
		dateOfBirth = &parsed
	}
	return joinDate, dateOfBirth, nil
}

// parseDate accepts either a bare date or a full RFC 3339 timestamp.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, value)
}

func addressInput(req addressRequest) memberdomain.AddressInput {
	return memberdomain.AddressInput{
		Line1:    req.Line1,
		Line2:    req.Line2,
		City:     req.City,
		County:   req.County,
		Postcode: req.Postcode,
	}
}
