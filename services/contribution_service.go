package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"masjid-khairat-system/models"
	"masjid-khairat-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ContributionService struct {
	DB *gorm.DB
	// Gateways maps a payment method onto its outbound client. Stubbed
	// in tests.
	Gateways map[string]GatewayClient
	// CallbackBaseURL prefixes the callback URLs handed to the gateways.
	CallbackBaseURL string
}

func NewContributionService(db *gorm.DB) *ContributionService {
	return &ContributionService{
		DB: db,
		Gateways: map[string]GatewayClient{
			models.PaymentMethodBillplz:   NewBillplzClient(),
			models.PaymentMethodToyyibPay: NewToyyibPayClient(),
		},
		CallbackBaseURL: os.Getenv("PUBLIC_BASE_URL"),
	}
}

type CreateContributionRequest struct {
	MosqueID      string  `json:"mosque_id" validate:"required"`
	ProgramID     string  `json:"program_id" validate:"required"`
	ContributorID string  `json:"contributor_id,omitempty"`
	PayerName     string  `json:"payer_name" validate:"required"`
	PayerEmail    string  `json:"payer_email,omitempty" validate:"omitempty,email"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=billplz toyyibpay cash"`
}

// CreateContribution handles POST /contributions. Gateway methods create
// a pending contribution plus a bill on the mosque's gateway; the two
// commit together, so a gateway failure leaves nothing behind. Cash
// contributions are recorded completed immediately.
func (s *ContributionService) CreateContribution(c *fiber.Ctx) error {
	var req CreateContributionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var program models.KhairatProgram
	if err := s.DB.First(&program, "id = ? AND mosque_id = ?", req.ProgramID, req.MosqueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "program not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to look up program"})
	}

	contribution := models.Contribution{
		ID:            uuid.NewString(),
		MosqueID:      req.MosqueID,
		ProgramID:     req.ProgramID,
		PayerName:     req.PayerName,
		PayerEmail:    req.PayerEmail,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Status:        models.ContributionStatusPending,
	}
	if req.ContributorID != "" {
		contribution.ContributorID = &req.ContributorID
	}

	if req.PaymentMethod == models.PaymentMethodCash {
		now := time.Now()
		contribution.Status = models.ContributionStatusCompleted
		contribution.ContributedAt = &now
		if err := s.DB.Create(&contribution).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record contribution"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"data":    contribution,
			"message": "cash contribution recorded",
		})
	}

	client, ok := s.Gateways[req.PaymentMethod]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unsupported payment method %q", req.PaymentMethod)})
	}

	creds, err := LoadGatewayCredentials(s.DB, req.MosqueID, req.PaymentMethod)
	if err != nil {
		if errors.Is(err, ErrNoProvider) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load gateway credentials"})
	}

	var bill *GatewayBill
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&contribution).Error; err != nil {
			return err
		}

		callbackURL := fmt.Sprintf("%s/webhooks/%s/callback", s.CallbackBaseURL, req.PaymentMethod)
		if req.PaymentMethod == models.PaymentMethodToyyibPay {
			callbackURL = fmt.Sprintf("%s?mosque_id=%s", callbackURL, req.MosqueID)
		}

		bill, err = client.CreateBill(c.Context(), *creds, BillRequest{
			Name:        req.PayerName,
			Email:       req.PayerEmail,
			Amount:      req.Amount,
			Description: fmt.Sprintf("Khairat contribution — %s", program.Name),
			Reference:   contribution.ID,
			CallbackURL: callbackURL,
		})
		if err != nil {
			return fmt.Errorf("gateway bill creation failed: %w", err)
		}

		return tx.Model(&models.Contribution{}).
			Where("id = ?", contribution.ID).
			Update("payment_reference", bill.Code).Error
	})
	if err != nil {
		logrus.WithError(err).WithField("method", req.PaymentMethod).Warn("contribution rolled back")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment gateway rejected the bill, contribution not recorded"})
	}

	contribution.PaymentReference = &bill.Code

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"contribution": contribution,
			"payment_url":  bill.PaymentURL,
		},
		"message": "contribution created, awaiting payment",
	})
}

// GetMosqueContributions lists a mosque's contributions, optionally
// filtered by status.
func (s *ContributionService) GetMosqueContributions(c *fiber.Ctx) error {
	query := s.DB.Preload("Program").Preload("Contributor").
		Where("mosque_id = ?", c.Params("id"))

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var contributions []models.Contribution
	if err := query.Order("created_at DESC").Find(&contributions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list contributions"})
	}
	return c.JSON(fiber.Map{"success": true, "data": contributions})
}

// ExpireStaleContributions marks gateway contributions still pending
// after olderThan as failed. Cash and legacy rows are never touched.
func (s *ContributionService) ExpireStaleContributions(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.DB.Model(&models.Contribution{}).
		Where("status = ? AND payment_method IN ? AND created_at < ?",
			models.ContributionStatusPending,
			[]string{models.PaymentMethodBillplz, models.PaymentMethodToyyibPay},
			cutoff).
		Update("status", models.ContributionStatusFailed)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
