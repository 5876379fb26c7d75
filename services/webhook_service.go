package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"masjid-khairat-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type WebhookService struct {
	DB *gorm.DB
}

func NewWebhookService(db *gorm.DB) *WebhookService {
	return &WebhookService{DB: db}
}

// ApplyGatewayStatus idempotently moves a contribution to the status
// reported by a gateway. Re-applying the current status is a no-op, and
// a completed contribution is never downgraded by a late or retried
// failure notification. Returns whether a row was changed.
func ApplyGatewayStatus(db *gorm.DB, contribution *models.Contribution, target string) (bool, error) {
	if contribution.Status == target {
		return false, nil
	}
	if contribution.Status == models.ContributionStatusCompleted {
		return false, nil
	}
	if target == models.ContributionStatusPending {
		return false, nil
	}

	updates := map[string]interface{}{"status": target}
	if target == models.ContributionStatusCompleted {
		updates["contributed_at"] = time.Now()
	}

	res := db.Model(&models.Contribution{}).
		Where("id = ? AND status = ?", contribution.ID, contribution.Status).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	// Zero rows means a concurrent delivery already applied a change;
	// for webhooks that is still a successful no-op.
	return res.RowsAffected > 0, nil
}

// writeLog persists the audit row for an inbound callback. Log failures
// are reported to the logger but never fail the callback itself.
func (s *WebhookService) writeLog(provider, externalRef, mosqueID, payload string, signatureOK bool, outcome, errMsg string) {
	entry := models.WebhookLog{
		ID:          uuid.NewString(),
		Provider:    provider,
		ExternalRef: externalRef,
		MosqueID:    mosqueID,
		Payload:     payload,
		SignatureOK: signatureOK,
		Outcome:     outcome,
		Error:       errMsg,
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		logrus.WithError(err).Error("failed to persist webhook log")
	}

	logrus.WithFields(logrus.Fields{
		"provider":     provider,
		"external_ref": externalRef,
		"signature_ok": signatureOK,
		"outcome":      outcome,
	}).Info("gateway callback processed")
}

func (s *WebhookService) lookupContribution(method, reference string) (*models.Contribution, error) {
	var contribution models.Contribution
	err := s.DB.Where("payment_method = ? AND payment_reference = ?", method, reference).
		First(&contribution).Error
	if err != nil {
		return nil, err
	}
	return &contribution, nil
}

// HandleBillplzCallback handles POST /webhooks/billplz/callback.
// Form-encoded payload, HMAC signature in the X-Signature header. The
// owning mosque is resolved through the contribution's bill ID, so the
// signature is checked against that mosque's Billplz API secret.
func (s *WebhookService) HandleBillplzCallback(c *fiber.Ctx) error {
	payload := string(c.Body())
	values, err := url.ParseQuery(payload)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed form payload"})
	}

	billID := values.Get("id")
	if billID == "" {
		s.writeLog(models.GatewayBillplz, "", "", payload, false, "rejected:missing_bill_id", "")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing bill id"})
	}

	contribution, err := s.lookupContribution(models.PaymentMethodBillplz, billID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.writeLog(models.GatewayBillplz, billID, "", payload, false, "rejected:unknown_reference", "")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown bill reference"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to look up contribution"})
	}

	creds, err := LoadGatewayCredentials(s.DB, contribution.MosqueID, models.GatewayBillplz)
	if err != nil {
		if errors.Is(err, ErrNoProvider) {
			s.writeLog(models.GatewayBillplz, billID, contribution.MosqueID, payload, false, "rejected:no_provider", "")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no billplz provider configured for this mosque"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load gateway credentials"})
	}

	signature := c.Get("X-Signature")
	if signature == "" {
		signature = values.Get("x_signature")
	}
	if !VerifyBillplzSignature(values, creds.Secret, signature) {
		s.writeLog(models.GatewayBillplz, billID, contribution.MosqueID, payload, false, "rejected:bad_signature", "")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid callback signature"})
	}

	target := MapBillplzState(values.Get("state"), values.Get("paid"))
	changed, err := ApplyGatewayStatus(s.DB, contribution, target)
	if err != nil {
		s.writeLog(models.GatewayBillplz, billID, contribution.MosqueID, payload, true, "error:db", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update contribution"})
	}

	outcome := "noop"
	if changed {
		outcome = "applied:" + target
	}
	s.writeLog(models.GatewayBillplz, billID, contribution.MosqueID, payload, true, outcome, "")

	return c.JSON(fiber.Map{"success": true, "message": outcome})
}

// HandleToyyibPayCallback handles POST /webhooks/toyyibpay/callback.
// Form-encoded payload; the owning mosque comes from the mosque_id query
// parameter and the authenticity hash from the signature form field.
func (s *WebhookService) HandleToyyibPayCallback(c *fiber.Ctx) error {
	payload := string(c.Body())
	values, err := url.ParseQuery(payload)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed form payload"})
	}

	mosqueID := c.Query("mosque_id")
	if mosqueID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing mosque_id"})
	}

	refNo := values.Get("refno")
	billCode := values.Get("billcode")
	statusCode := values.Get("status")
	amount := values.Get("amount")
	if billCode == "" {
		s.writeLog(models.GatewayToyyibPay, refNo, mosqueID, payload, false, "rejected:missing_bill_code", "")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing bill code"})
	}

	creds, err := LoadGatewayCredentials(s.DB, mosqueID, models.GatewayToyyibPay)
	if err != nil {
		if errors.Is(err, ErrNoProvider) {
			s.writeLog(models.GatewayToyyibPay, billCode, mosqueID, payload, false, "rejected:no_provider", "")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no toyyibpay provider configured for this mosque"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load gateway credentials"})
	}

	if !VerifyToyyibPaySignature(refNo, billCode, statusCode, amount, creds.Secret, values.Get("signature")) {
		s.writeLog(models.GatewayToyyibPay, billCode, mosqueID, payload, false, "rejected:bad_signature", "")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid callback signature"})
	}

	contribution, err := s.lookupContribution(models.PaymentMethodToyyibPay, billCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.writeLog(models.GatewayToyyibPay, billCode, mosqueID, payload, true, "rejected:unknown_reference", "")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown bill reference"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to look up contribution"})
	}
	if contribution.MosqueID != mosqueID {
		s.writeLog(models.GatewayToyyibPay, billCode, mosqueID, payload, true, "rejected:mosque_mismatch", "")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bill does not belong to this mosque"})
	}

	target := MapToyyibPayStatus(statusCode)
	changed, err := ApplyGatewayStatus(s.DB, contribution, target)
	if err != nil {
		s.writeLog(models.GatewayToyyibPay, billCode, mosqueID, payload, true, "error:db", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update contribution"})
	}

	outcome := "noop"
	if changed {
		outcome = "applied:" + target
	}
	s.writeLog(models.GatewayToyyibPay, billCode, mosqueID, payload, true, outcome, "")

	return c.JSON(fiber.Map{"success": true, "message": outcome})
}

// Liveness probes for gateway dashboard "test URL" buttons.
func (s *WebhookService) BillplzLiveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "provider": models.GatewayBillplz})
}

func (s *WebhookService) ToyyibPayLiveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "provider": models.GatewayToyyibPay})
}

// ArchiveWebhookLogs exports unarchived rows created before cutoff as one
// JSON object per day and marks them archived. Used by the scheduler.
func (s *WebhookService) ArchiveWebhookLogs(cutoff time.Time, upload func(key string, body []byte) error) (int64, error) {
	var logs []models.WebhookLog
	if err := s.DB.Where("archived = ? AND created_at < ?", false, cutoff).Find(&logs).Error; err != nil {
		return 0, err
	}
	if len(logs) == 0 {
		return 0, nil
	}

	key := fmt.Sprintf("webhook-logs/%s.json", cutoff.Format("2006-01-02"))
	body, err := marshalWebhookLogs(logs)
	if err != nil {
		return 0, err
	}
	if err := upload(key, body); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.ID)
	}
	res := s.DB.Model(&models.WebhookLog{}).Where("id IN ?", ids).Update("archived", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func marshalWebhookLogs(logs []models.WebhookLog) ([]byte, error) {
	body, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook logs: %w", err)
	}
	return body, nil
}
