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

type ClaimService struct {
	DB *gorm.DB
}

func NewClaimService(db *gorm.DB) *ClaimService {
	return &ClaimService{DB: db}
}

// --- Claim request types ---

type SubmitClaimRequest struct {
	MosqueID        string  `json:"mosque_id" validate:"required"`
	ClaimantID      string  `json:"claimant_id" validate:"required"`
	ProgramID       string  `json:"program_id" validate:"required"`
	RequestedAmount float64 `json:"requested_amount" validate:"required,gt=0"`
	Notes           string  `json:"notes,omitempty"`
}

type ApproveClaimRequest struct {
	ApprovedBy     string   `json:"approvedBy" validate:"required"`
	ApprovedAmount *float64 `json:"approvedAmount,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

type RejectClaimRequest struct {
	RejectedBy      string `json:"rejectedBy" validate:"required"`
	RejectionReason string `json:"rejectionReason" validate:"required"`
	Notes           string `json:"notes,omitempty"`
}

type MarkPaidRequest struct {
	MarkedBy string `json:"markedBy" validate:"required"`
	Notes    string `json:"notes,omitempty"`
}

type UpdateClaimStatusRequest struct {
	Status    string `json:"status" validate:"required"`
	UpdatedBy string `json:"updatedBy" validate:"required"`
	Notes     string `json:"notes,omitempty"`
}

type CancelClaimRequest struct {
	CancelledBy string `json:"cancelledBy" validate:"required"`
}

// loadAdmin resolves an acting member by ID and checks the admin role.
// Returns (nil, status, message) on failure: 404 if the member does not
// exist, 403 if they are not an admin of the claim's mosque.
func (s *ClaimService) loadAdmin(memberID, mosqueID string) (*models.Member, int, string) {
	var member models.Member
	if err := s.DB.First(&member, "id = ?", memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.StatusNotFound, "acting member not found"
		}
		return nil, fiber.StatusInternalServerError, "failed to look up acting member"
	}
	if !member.IsAdmin() || member.MosqueID != mosqueID {
		return nil, fiber.StatusForbidden, "only a mosque admin can perform this action"
	}
	return &member, 0, ""
}

func (s *ClaimService) loadClaim(id string) (*models.Claim, int, string) {
	var claim models.Claim
	if err := s.DB.First(&claim, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.StatusNotFound, "claim not found"
		}
		return nil, fiber.StatusInternalServerError, "failed to load claim"
	}
	return &claim, 0, ""
}

// transitionClaim applies updates only if the stored status still equals
// expectedPrior. Zero rows affected means a concurrent writer got there
// first; the caller reports 409.
func (s *ClaimService) transitionClaim(claimID, expectedPrior string, updates map[string]interface{}) (bool, error) {
	res := s.DB.Model(&models.Claim{}).
		Where("id = ? AND status = ?", claimID, expectedPrior).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *ClaimService) reloadClaim(id string) (*models.Claim, error) {
	var claim models.Claim
	err := s.DB.Preload("Claimant").Preload("Program").Preload("Approver").Preload("Reviewer").
		First(&claim, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// SubmitClaim creates a new claim in status pending.
func (s *ClaimService) SubmitClaim(c *fiber.Ctx) error {
	var req SubmitClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var claimant models.Member
	if err := s.DB.First(&claimant, "id = ?", req.ClaimantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "claimant not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to look up claimant"})
	}
	if claimant.MosqueID != req.MosqueID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "claimant does not belong to this mosque"})
	}

	var program models.KhairatProgram
	if err := s.DB.First(&program, "id = ? AND mosque_id = ?", req.ProgramID, req.MosqueID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "program not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to look up program"})
	}
	if !program.IsActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "program is not active"})
	}

	claim := models.Claim{
		ID:              uuid.NewString(),
		MosqueID:        req.MosqueID,
		ClaimantID:      req.ClaimantID,
		ProgramID:       req.ProgramID,
		RequestedAmount: req.RequestedAmount,
		Status:          models.ClaimStatusPending,
		Notes:           req.Notes,
	}
	if err := s.DB.Create(&claim).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create claim"})
	}

	logrus.WithFields(logrus.Fields{
		"claim_id": claim.ID,
		"mosque":   claim.MosqueID,
		"amount":   claim.RequestedAmount,
	}).Info("claim submitted")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    claim,
		"message": "claim submitted",
	})
}

// GetClaim returns a claim with claimant/program/approver summaries.
func (s *ClaimService) GetClaim(c *fiber.Ctx) error {
	claim, err := s.reloadClaim(c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "claim not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load claim"})
	}
	return c.JSON(fiber.Map{"success": true, "data": claim})
}

// GetMosqueClaims lists a mosque's claims, optionally filtered by status.
func (s *ClaimService) GetMosqueClaims(c *fiber.Ctx) error {
	mosqueID := c.Params("id")
	query := s.DB.Preload("Claimant").Preload("Program").Where("mosque_id = ?", mosqueID)

	if status := c.Query("status"); status != "" {
		if !IsValidClaimStatus(status) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown claim status %q", status)})
		}
		query = query.Where("status = ?", status)
	}

	var claims []models.Claim
	if err := query.Order("created_at DESC").Find(&claims).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list claims"})
	}
	return c.JSON(fiber.Map{"success": true, "data": claims})
}

// ApproveClaim handles POST /claims/:id/approve.
func (s *ClaimService) ApproveClaim(c *fiber.Ctx) error {
	var req ApproveClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	claim, status, msg := s.loadClaim(c.Params("id"))
	if claim == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	approver, status, msg := s.loadAdmin(req.ApprovedBy, claim.MosqueID)
	if approver == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	if claim.Status != models.ClaimStatusPending && claim.Status != models.ClaimStatusUnderReview {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("only pending or under_review claims can be approved (current status: %s)", claim.Status),
		})
	}

	// Approved amount defaults to the requested amount.
	amount := claim.RequestedAmount
	if req.ApprovedAmount != nil {
		amount = *req.ApprovedAmount
	}
	if amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "approved amount must be a positive number"})
	}
	if amount > claim.RequestedAmount {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("approved amount %.2f exceeds requested amount %.2f", amount, claim.RequestedAmount),
		})
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          models.ClaimStatusApproved,
		"approved_amount": amount,
		"approved_by":     approver.ID,
		"approved_at":     now,
		"reviewed_by":     approver.ID,
		"reviewed_at":     now,
	}
	if req.Notes != "" {
		updates["notes"] = req.Notes
	}

	applied, err := s.transitionClaim(claim.ID, claim.Status, updates)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update claim"})
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "claim was modified concurrently, reload and retry"})
	}

	updated, err := s.reloadClaim(claim.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reload claim"})
	}

	logrus.WithFields(logrus.Fields{
		"claim_id":    claim.ID,
		"approved_by": approver.ID,
		"amount":      amount,
	}).Info("claim approved")

	return c.JSON(fiber.Map{"success": true, "data": updated, "message": "claim approved"})
}

// RejectClaim handles POST /claims/:id/reject.
func (s *ClaimService) RejectClaim(c *fiber.Ctx) error {
	var req RejectClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	claim, status, msg := s.loadClaim(c.Params("id"))
	if claim == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	rejector, status, msg := s.loadAdmin(req.RejectedBy, claim.MosqueID)
	if rejector == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	if claim.Status != models.ClaimStatusPending && claim.Status != models.ClaimStatusUnderReview {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("only pending or under_review claims can be rejected (current status: %s)", claim.Status),
		})
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":           models.ClaimStatusRejected,
		"rejection_reason": req.RejectionReason,
		"reviewed_by":      rejector.ID,
		"reviewed_at":      now,
	}
	if req.Notes != "" {
		updates["notes"] = req.Notes
	}

	applied, err := s.transitionClaim(claim.ID, claim.Status, updates)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update claim"})
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "claim was modified concurrently, reload and retry"})
	}

	updated, err := s.reloadClaim(claim.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reload claim"})
	}

	logrus.WithFields(logrus.Fields{
		"claim_id":    claim.ID,
		"rejected_by": rejector.ID,
		"reason":      req.RejectionReason,
	}).Info("claim rejected")

	return c.JSON(fiber.Map{"success": true, "data": updated, "message": "claim rejected"})
}

// MarkClaimPaid handles POST /claims/:id/mark-paid. Only approved claims
// can be marked paid; the annotation is appended to existing notes.
func (s *ClaimService) MarkClaimPaid(c *fiber.Ctx) error {
	var req MarkPaidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	claim, status, msg := s.loadClaim(c.Params("id"))
	if claim == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	marker, status, msg := s.loadAdmin(req.MarkedBy, claim.MosqueID)
	if marker == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	if claim.Status != models.ClaimStatusApproved {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Only approved claims can be marked as paid"})
	}

	now := time.Now()
	annotation := fmt.Sprintf("[%s] marked as paid by %s", now.Format(time.RFC3339), marker.FullName)
	if req.Notes != "" {
		annotation = annotation + ": " + req.Notes
	}
	notes := claim.Notes
	if notes != "" {
		notes = notes + "\n"
	}
	notes = notes + annotation

	applied, err := s.transitionClaim(claim.ID, models.ClaimStatusApproved, map[string]interface{}{
		"status":  models.ClaimStatusPaid,
		"paid_at": now,
		"notes":   notes,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update claim"})
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "claim was modified concurrently, reload and retry"})
	}

	updated, err := s.reloadClaim(claim.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reload claim"})
	}

	logrus.WithFields(logrus.Fields{"claim_id": claim.ID, "marked_by": marker.ID}).Info("claim marked paid")

	return c.JSON(fiber.Map{"success": true, "data": updated, "message": "claim marked as paid"})
}

// UpdateClaimStatus handles PUT /claims/:id/status, the generic
// transition endpoint gated by the adjacency map.
func (s *ClaimService) UpdateClaimStatus(c *fiber.Ctx) error {
	var req UpdateClaimStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if !IsValidClaimStatus(req.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown claim status %q", req.Status)})
	}

	claim, status, msg := s.loadClaim(c.Params("id"))
	if claim == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	updater, status, msg := s.loadAdmin(req.UpdatedBy, claim.MosqueID)
	if updater == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	if err := CanTransitionClaim(claim.Status, req.Status); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      req.Status,
		"reviewed_by": updater.ID,
		"reviewed_at": now,
	}
	switch req.Status {
	case models.ClaimStatusApproved:
		// Generic path carries no explicit amount; default to requested.
		updates["approved_amount"] = claim.RequestedAmount
		updates["approved_by"] = updater.ID
		updates["approved_at"] = now
	case models.ClaimStatusPaid:
		updates["paid_at"] = now
	}
	if req.Notes != "" {
		updates["notes"] = req.Notes
	}

	applied, err := s.transitionClaim(claim.ID, claim.Status, updates)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update claim"})
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "claim was modified concurrently, reload and retry"})
	}

	updated, err := s.reloadClaim(claim.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reload claim"})
	}

	return c.JSON(fiber.Map{"success": true, "data": updated, "message": "claim status updated"})
}

// CancelClaim lets the claimant cancel their own claim while the
// transition table still allows it.
func (s *ClaimService) CancelClaim(c *fiber.Ctx) error {
	var req CancelClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	claim, status, msg := s.loadClaim(c.Params("id"))
	if claim == nil {
		return c.Status(status).JSON(fiber.Map{"error": msg})
	}

	if claim.ClaimantID != req.CancelledBy {
		// Admins may also cancel on the claimant's behalf.
		admin, status, msg := s.loadAdmin(req.CancelledBy, claim.MosqueID)
		if admin == nil {
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
	}

	if err := CanTransitionClaim(claim.Status, models.ClaimStatusCancelled); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	applied, err := s.transitionClaim(claim.ID, claim.Status, map[string]interface{}{
		"status": models.ClaimStatusCancelled,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update claim"})
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "claim was modified concurrently, reload and retry"})
	}

	updated, err := s.reloadClaim(claim.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to reload claim"})
	}

	return c.JSON(fiber.Map{"success": true, "data": updated, "message": "claim cancelled"})
}
