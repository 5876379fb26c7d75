package services

import (
	"errors"

	"masjid-khairat-system/models"
	"masjid-khairat-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type MosqueService struct {
	DB *gorm.DB
}

func NewMosqueService(db *gorm.DB) *MosqueService {
	return &MosqueService{DB: db}
}

type CreateMosqueRequest struct {
	Name         string `json:"name" validate:"required"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty" validate:"omitempty,email"`
}

type CreateProgramRequest struct {
	Name          string  `json:"name" validate:"required"`
	Description   string  `json:"description,omitempty"`
	AnnualFee     float64 `json:"annual_fee" validate:"gte=0"`
	BenefitAmount float64 `json:"benefit_amount" validate:"gte=0"`
}

// uniqueSlug derives a slug from the mosque name, suffixing with a short
// uuid fragment on collision.
func (s *MosqueService) uniqueSlug(name string) (string, error) {
	base := slug.Make(name)
	candidate := base
	for {
		var count int64
		if err := s.DB.Model(&models.Mosque{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = base + "-" + uuid.NewString()[:8]
	}
}

// CreateMosque handles POST /mosques.
func (s *MosqueService) CreateMosque(c *fiber.Ctx) error {
	var req CreateMosqueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	mosqueSlug, err := s.uniqueSlug(req.Name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to allocate slug"})
	}

	mosque := models.Mosque{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Slug:         mosqueSlug,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	}
	if err := s.DB.Create(&mosque).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create mosque"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    mosque,
		"message": "mosque registered",
	})
}

// GetMosque handles GET /mosques/:id (accepts id or slug).
func (s *MosqueService) GetMosque(c *fiber.Ctx) error {
	key := c.Params("id")

	var mosque models.Mosque
	if err := s.DB.Where("id = ? OR slug = ?", key, key).First(&mosque).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "mosque not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load mosque"})
	}
	return c.JSON(fiber.Map{"success": true, "data": mosque})
}

// ListMosques handles GET /mosques.
func (s *MosqueService) ListMosques(c *fiber.Ctx) error {
	var mosques []models.Mosque
	if err := s.DB.Order("name ASC").Find(&mosques).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list mosques"})
	}
	return c.JSON(fiber.Map{"success": true, "data": mosques})
}

// CreateProgram handles POST /mosques/:id/programs.
func (s *MosqueService) CreateProgram(c *fiber.Ctx) error {
	mosqueID := c.Params("id")

	var req CreateProgramRequest
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

	program := models.KhairatProgram{
		ID:            uuid.NewString(),
		MosqueID:      mosqueID,
		Name:          req.Name,
		Description:   req.Description,
		AnnualFee:     req.AnnualFee,
		BenefitAmount: req.BenefitAmount,
		IsActive:      true,
	}
	if err := s.DB.Create(&program).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create program"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    program,
		"message": "program created",
	})
}

// ListPrograms handles GET /mosques/:id/programs.
func (s *MosqueService) ListPrograms(c *fiber.Ctx) error {
	var programs []models.KhairatProgram
	if err := s.DB.Where("mosque_id = ?", c.Params("id")).Order("created_at ASC").Find(&programs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list programs"})
	}
	return c.JSON(fiber.Map{"success": true, "data": programs})
}
