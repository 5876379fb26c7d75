package services

import (
	"errors"
	"fmt"
	"time"

	"masjid-khairat-system/models"
	"masjid-khairat-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type LegacyService struct {
	DB *gorm.DB
}

func NewLegacyService(db *gorm.DB) *LegacyService {
	return &LegacyService{DB: db}
}

// --- Legacy reconciliation request types ---

type ImportLegacyRecordsRequest struct {
	MosqueID string                    `json:"mosque_id" validate:"required"`
	Records  []ImportLegacyRecordEntry `json:"records" validate:"required,min=1,dive"`
}

type ImportLegacyRecordEntry struct {
	FullName      string  `json:"full_name" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	PaymentDate   string  `json:"payment_date" validate:"required"` // RFC3339 or 2006-01-02
	InvoiceNumber string  `json:"invoice_number"`
}

type MatchLegacyRecordRequest struct {
	RecordID string `json:"record_id" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
	MosqueID string `json:"mosque_id" validate:"required"`
}

type UnmatchLegacyRecordRequest struct {
	RecordID string `json:"record_id" validate:"required"`
}

type BulkMatchRequest struct {
	MosqueID string           `json:"mosque_id" validate:"required"`
	Matches  []BulkMatchEntry `json:"matches" validate:"required,min=1,dive"`
}

type BulkMatchEntry struct {
	RecordID string `json:"record_id" validate:"required"`
	UserID   string `json:"user_id" validate:"required"`
}

type BulkUnmatchRequest struct {
	RecordIDs []string `json:"record_ids" validate:"required,min=1"`
}

func parseLegacyDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// ImportLegacyRecords loads a batch of historical payment rows for later
// reconciliation.
func (s *LegacyService) ImportLegacyRecords(c *fiber.Ctx) error {
	var req ImportLegacyRecordsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	records := make([]models.LegacyRecord, 0, len(req.Records))
	for i, entry := range req.Records {
		paymentDate, err := parseLegacyDate(entry.PaymentDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("records[%d]: invalid payment_date %q", i, entry.PaymentDate),
			})
		}
		records = append(records, models.LegacyRecord{
			ID:            uuid.NewString(),
			MosqueID:      req.MosqueID,
			FullName:      entry.FullName,
			Amount:        entry.Amount,
			PaymentDate:   paymentDate,
			InvoiceNumber: entry.InvoiceNumber,
		})
	}

	if err := s.DB.Create(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to import legacy records"})
	}

	logrus.WithFields(logrus.Fields{"mosque": req.MosqueID, "count": len(records)}).Info("legacy records imported")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    records,
		"message": fmt.Sprintf("%d legacy records imported", len(records)),
	})
}

// GetMosqueLegacyRecords lists a mosque's legacy records, optionally
// filtered by ?matched=true|false.
func (s *LegacyService) GetMosqueLegacyRecords(c *fiber.Ctx) error {
	query := s.DB.Preload("MatchedUser").Where("mosque_id = ?", c.Params("id"))

	if matched := c.Query("matched"); matched != "" {
		query = query.Where("is_matched = ?", matched == "true")
	}

	var records []models.LegacyRecord
	if err := query.Order("payment_date DESC").Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list legacy records"})
	}
	return c.JSON(fiber.Map{"success": true, "data": records})
}

// matchRecordTx synthesizes a completed Contribution from a legacy record
// and marks the record matched. Runs inside the caller's transaction so
// both writes commit or roll back together.
func matchRecordTx(tx *gorm.DB, record *models.LegacyRecord, member *models.Member) (*models.Contribution, error) {
	var program models.KhairatProgram
	if err := tx.Where("mosque_id = ?", record.MosqueID).Order("created_at ASC").First(&program).Error; err != nil {
		return nil, fmt.Errorf("mosque has no khairat program to attach the contribution to: %w", err)
	}

	contributedAt := record.PaymentDate
	contribution := models.Contribution{
		ID:            uuid.NewString(),
		MosqueID:      record.MosqueID,
		ProgramID:     program.ID,
		ContributorID: &member.ID,
		PayerName:     record.FullName,
		Amount:        record.Amount,
		PaymentMethod: models.PaymentMethodLegacy,
		Status:        models.ContributionStatusCompleted,
		ContributedAt: &contributedAt,
	}
	if record.InvoiceNumber != "" {
		contribution.PaymentReference = &record.InvoiceNumber
	}
	if err := tx.Create(&contribution).Error; err != nil {
		return nil, fmt.Errorf("failed to create contribution: %w", err)
	}

	now := time.Now()
	res := tx.Model(&models.LegacyRecord{}).
		Where("id = ? AND is_matched = ?", record.ID, false).
		Updates(map[string]interface{}{
			"matched_user_id": member.ID,
			"contribution_id": contribution.ID,
			"is_matched":      true,
			"matched_at":      now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("legacy record %s was matched concurrently", record.ID)
	}

	return &contribution, nil
}

// MatchLegacyRecord handles POST /legacy-records/match.
func (s *LegacyService) MatchLegacyRecord(c *fiber.Ctx) error {
	var req MatchLegacyRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var record models.LegacyRecord
	if err := s.DB.First(&record, "id = ? AND mosque_id = ?", req.RecordID, req.MosqueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "legacy record not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load legacy record"})
	}
	if record.IsMatched {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "legacy record is already matched"})
	}

	var member models.Member
	if err := s.DB.First(&member, "id = ? AND mosque_id = ?", req.UserID, req.MosqueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "member not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load member"})
	}

	var contribution *models.Contribution
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		contribution, err = matchRecordTx(tx, &record, &member)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to match legacy record"})
	}

	logrus.WithFields(logrus.Fields{
		"record_id":       record.ID,
		"member_id":       member.ID,
		"contribution_id": contribution.ID,
	}).Info("legacy record matched")

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"record_id":       record.ID,
			"contribution_id": contribution.ID,
		},
		"message": "legacy record matched",
	})
}

// unmatchRecordTx deletes the synthesized contribution (if any) and
// clears the three matching fields.
func unmatchRecordTx(tx *gorm.DB, record *models.LegacyRecord) error {
	if record.ContributionID != nil {
		if err := tx.Delete(&models.Contribution{}, "id = ?", *record.ContributionID).Error; err != nil {
			return fmt.Errorf("failed to delete contribution: %w", err)
		}
	}

	return tx.Model(&models.LegacyRecord{}).
		Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"matched_user_id": nil,
			"contribution_id": nil,
			"is_matched":      false,
			"matched_at":      nil,
		}).Error
}

// UnmatchLegacyRecord handles POST /legacy-records/unmatch.
func (s *LegacyService) UnmatchLegacyRecord(c *fiber.Ctx) error {
	var req UnmatchLegacyRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var record models.LegacyRecord
	if err := s.DB.First(&record, "id = ?", req.RecordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "legacy record not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load legacy record"})
	}
	if !record.IsMatched {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "legacy record is not matched"})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		return unmatchRecordTx(tx, &record)
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to unmatch legacy record"})
	}

	logrus.WithField("record_id", record.ID).Info("legacy record unmatched")

	return c.JSON(fiber.Map{"success": true, "message": "legacy record unmatched"})
}

// BulkMatchLegacyRecords handles POST /legacy-records/bulk-match. All
// target records are checked up front; the whole batch commits in one
// transaction, so a failure partway persists nothing.
func (s *LegacyService) BulkMatchLegacyRecords(c *fiber.Ctx) error {
	var req BulkMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	// Pre-flight: every record must exist, belong to the mosque and be
	// unmatched; every member must exist.
	records := make(map[string]*models.LegacyRecord, len(req.Matches))
	members := make(map[string]*models.Member, len(req.Matches))
	for _, entry := range req.Matches {
		var record models.LegacyRecord
		if err := s.DB.First(&record, "id = ? AND mosque_id = ?", entry.RecordID, req.MosqueID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": fmt.Sprintf("legacy record %s not found", entry.RecordID),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load legacy records"})
		}
		if record.IsMatched {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("legacy record %s is already matched", entry.RecordID),
			})
		}
		records[entry.RecordID] = &record

		var member models.Member
		if err := s.DB.First(&member, "id = ? AND mosque_id = ?", entry.UserID, req.MosqueID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": fmt.Sprintf("member %s not found", entry.UserID),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load members"})
		}
		members[entry.UserID] = &member
	}

	var matched []fiber.Map
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for _, entry := range req.Matches {
			contribution, err := matchRecordTx(tx, records[entry.RecordID], members[entry.UserID])
			if err != nil {
				return err
			}
			matched = append(matched, fiber.Map{
				"record_id":       entry.RecordID,
				"contribution_id": contribution.ID,
			})
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).Warn("bulk match rolled back")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "bulk match failed, no records were matched"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    matched,
		"message": fmt.Sprintf("%d legacy records matched", len(matched)),
	})
}

// BulkUnmatchLegacyRecords handles POST /legacy-records/bulk-unmatch.
// Rejects up front if any requested id does not exist.
func (s *LegacyService) BulkUnmatchLegacyRecords(c *fiber.Ctx) error {
	var req BulkUnmatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var records []models.LegacyRecord
	if err := s.DB.Where("id IN ?", req.RecordIDs).Find(&records).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load legacy records"})
	}
	if len(records) != len(req.RecordIDs) {
		found := make(map[string]bool, len(records))
		for _, r := range records {
			found[r.ID] = true
		}
		for _, id := range req.RecordIDs {
			if !found[id] {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": fmt.Sprintf("legacy record %s not found", id),
				})
			}
		}
	}

	unmatched := 0
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for i := range records {
			if !records[i].IsMatched {
				continue
			}
			if err := unmatchRecordTx(tx, &records[i]); err != nil {
				return err
			}
			unmatched++
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).Warn("bulk unmatch rolled back")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "bulk unmatch failed, no records were changed"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("%d legacy records unmatched", unmatched),
	})
}
