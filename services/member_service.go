package services

import (
	"errors"

	"masjid-khairat-system/models"
	"masjid-khairat-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type MemberService struct {
	DB *gorm.DB
}

func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{DB: db}
}

type RegisterMemberRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	ICNumber string `json:"ic_number,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=member admin"`
	IsKariah *bool  `json:"is_kariah,omitempty"`
}

type PromoteMemberRequest struct {
	PromotedBy string `json:"promoted_by" validate:"required"`
}

// RegisterMember handles POST /mosques/:id/members.
func (s *MemberService) RegisterMember(c *fiber.Ctx) error {
	mosqueID := c.Params("id")

	var req RegisterMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var mosque models.Mosque
	if err := s.DB.First(&mosque, "id = ?", mosqueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "mosque not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to look up mosque"})
	}

	member := models.Member{
		ID:       uuid.NewString(),
		MosqueID: mosqueID,
		FullName: req.FullName,
		Email:    req.Email,
		ICNumber: req.ICNumber,
		Phone:    req.Phone,
		Role:     models.RoleMember,
		IsKariah: true,
	}
	if req.Role != "" {
		member.Role = req.Role
	}
	if req.IsKariah != nil {
		member.IsKariah = *req.IsKariah
	}

	if err := s.DB.Create(&member).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to register member"})
	}

	logrus.WithFields(logrus.Fields{"member_id": member.ID, "mosque": mosqueID, "role": member.Role}).Info("member registered")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    member,
		"message": "member registered",
	})
}

// ListMembers handles GET /mosques/:id/members.
func (s *MemberService) ListMembers(c *fiber.Ctx) error {
	query := s.DB.Where("mosque_id = ?", c.Params("id"))
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var members []models.Member
	if err := query.Order("full_name ASC").Find(&members).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list members"})
	}
	return c.JSON(fiber.Map{"success": true, "data": members})
}

// PromoteMember handles PATCH /members/:id/promote. Only an existing
// admin of the same mosque can promote.
func (s *MemberService) PromoteMember(c *fiber.Ctx) error {
	var req PromoteMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var member models.Member
	if err := s.DB.First(&member, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "member not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load member"})
	}

	var promoter models.Member
	if err := s.DB.First(&promoter, "id = ?", req.PromotedBy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "promoting member not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load promoting member"})
	}
	if !promoter.IsAdmin() || promoter.MosqueID != member.MosqueID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only a mosque admin can promote members"})
	}

	if err := s.DB.Model(&member).Update("role", models.RoleAdmin).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to promote member"})
	}

	return c.JSON(fiber.Map{"success": true, "data": member, "message": "member promoted to admin"})
}
