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

type ProviderService struct {
	DB *gorm.DB
}

func NewProviderService(db *gorm.DB) *ProviderService {
	return &ProviderService{DB: db}
}

type CreateProviderRequest struct {
	GatewayType   string `json:"gateway_type" validate:"required,oneof=billplz toyyibpay"`
	Secret        string `json:"secret" validate:"required"`
	CollectionRef string `json:"collection_ref" validate:"required"`
	IsActive      *bool  `json:"is_active,omitempty"`
}

type UpdateProviderRequest struct {
	Secret        *string `json:"secret,omitempty"`
	CollectionRef *string `json:"collection_ref,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
}

// CreateProvider handles POST /mosques/:id/providers. One credential set
// per gateway per mosque; the secret is sealed before it is stored and
// never returned.
func (s *ProviderService) CreateProvider(c *fiber.Ctx) error {
	mosqueID := c.Params("id")

	var req CreateProviderRequest
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

	var existing models.PaymentProvider
	err := s.DB.Where("mosque_id = ? AND gateway_type = ?", mosqueID, req.GatewayType).First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a credential set for this gateway already exists, update it instead",
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check existing providers"})
	}

	sealed, err := utils.SealSecret(req.Secret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to encrypt secret"})
	}

	provider := models.PaymentProvider{
		ID:              uuid.NewString(),
		MosqueID:        mosqueID,
		GatewayType:     req.GatewayType,
		EncryptedSecret: sealed,
		CollectionRef:   req.CollectionRef,
		IsActive:        true,
	}
	if req.IsActive != nil {
		provider.IsActive = *req.IsActive
	}

	if err := s.DB.Create(&provider).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save provider"})
	}

	logrus.WithFields(logrus.Fields{"mosque": mosqueID, "gateway": req.GatewayType}).Info("payment provider configured")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    provider,
		"message": "payment provider configured",
	})
}

// ListProviders handles GET /mosques/:id/providers. The encrypted secret
// is excluded from serialization by the model.
func (s *ProviderService) ListProviders(c *fiber.Ctx) error {
	var providers []models.PaymentProvider
	if err := s.DB.Where("mosque_id = ?", c.Params("id")).Find(&providers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list providers"})
	}
	return c.JSON(fiber.Map{"success": true, "data": providers})
}

// UpdateProvider handles PUT /providers/:id. A new secret is re-sealed.
func (s *ProviderService) UpdateProvider(c *fiber.Ctx) error {
	var req UpdateProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}

	var provider models.PaymentProvider
	if err := s.DB.First(&provider, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "provider not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load provider"})
	}

	updates := map[string]interface{}{}
	if req.Secret != nil {
		if *req.Secret == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "secret cannot be empty"})
		}
		sealed, err := utils.SealSecret(*req.Secret)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to encrypt secret"})
		}
		updates["encrypted_secret"] = sealed
	}
	if req.CollectionRef != nil {
		updates["collection_ref"] = *req.CollectionRef
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "nothing to update"})
	}

	if err := s.DB.Model(&provider).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update provider"})
	}

	return c.JSON(fiber.Map{"success": true, "data": provider, "message": "provider updated"})
}

// DeleteProvider handles DELETE /providers/:id.
func (s *ProviderService) DeleteProvider(c *fiber.Ctx) error {
	res := s.DB.Delete(&models.PaymentProvider{}, "id = ?", c.Params("id"))
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete provider"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "provider not found"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "provider deleted"})
}
