package services_test

import (
	"net/http"
	"strings"
	"testing"

	"masjid-khairat-system/models"
)

func TestApproveClaimDefaultsToRequestedAmount(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	admin := env.createMember(t, mosque.ID, models.RoleAdmin)
	claimant := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)
	claim := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusPending, 2000)

	status, body := env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/approve", map[string]interface{}{
		"approvedBy": admin.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}

	var reloaded models.Claim
	if err := env.DB.First(&reloaded, "id = ?", claim.ID).Error; err != nil {
		t.Fatalf("failed to reload claim: %v", err)
	}
	if reloaded.Status != models.ClaimStatusApproved {
		t.Errorf("expected status approved, got %s", reloaded.Status)
	}
	if reloaded.ApprovedAmount == nil || *reloaded.ApprovedAmount != 2000 {
		t.Errorf("expected approved amount to default to requested (2000), got %v", reloaded.ApprovedAmount)
	}
	if reloaded.ApprovedBy == nil || *reloaded.ApprovedBy != admin.ID {
		t.Errorf("expected approver %s recorded, got %v", admin.ID, reloaded.ApprovedBy)
	}
	if reloaded.ApprovedAt == nil || reloaded.ReviewedAt == nil {
		t.Error("expected both approved_at and reviewed_at to be set")
	}
}

func TestApproveClaimRejectsAmountAboveRequested(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	admin := env.createMember(t, mosque.ID, models.RoleAdmin)
	claimant := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)
	claim := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusUnderReview, 1000)

	status, body := env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/approve", map[string]interface{}{
		"approvedBy":     admin.ID,
		"approvedAmount": 1500.0,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%v)", status, body)
	}
	if got := env.claimStatus(t, claim.ID); got != models.ClaimStatusUnderReview {
		t.Errorf("stored status must be unchanged, got %s", got)
	}

	status, _ = env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/approve", map[string]interface{}{
		"approvedBy":     admin.ID,
		"approvedAmount": -5.0,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-positive amount, got %d", status)
	}
}

func TestApproveClaimAuthz(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	nonAdmin := env.createMember(t, mosque.ID, models.RoleMember)
	claimant := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)
	claim := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusPending, 500)

	// Non-admin actor: 403, no mutation.
	status, _ := env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/approve", map[string]interface{}{
		"approvedBy": nonAdmin.ID,
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", status)
	}
	if got := env.claimStatus(t, claim.ID); got != models.ClaimStatusPending {
		t.Errorf("status must be unchanged after 403, got %s", got)
	}

	// Unknown actor: 404.
	status, _ = env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/approve", map[string]interface{}{
		"approvedBy": "no-such-member",
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown approver, got %d", status)
	}

	// Admin of a different mosque: 403.
	otherMosque := env.createMosque(t)
	foreignAdmin := env.createMember(t, otherMosque.ID, models.RoleAdmin)
	status, _ = env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/approve", map[string]interface{}{
		"approvedBy": foreignAdmin.ID,
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign admin, got %d", status)
	}
}

func TestRejectClaimRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	admin := env.createMember(t, mosque.ID, models.RoleAdmin)
	claimant := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)
	claim := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusPending, 500)

	status, _ := env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/reject", map[string]interface{}{
		"rejectedBy": admin.ID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 without rejection reason, got %d", status)
	}

	status, _ = env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/reject", map[string]interface{}{
		"rejectedBy":      admin.ID,
		"rejectionReason": "insufficient supporting documents",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	var reloaded models.Claim
	if err := env.DB.First(&reloaded, "id = ?", claim.ID).Error; err != nil {
		t.Fatalf("failed to reload claim: %v", err)
	}
	if reloaded.Status != models.ClaimStatusRejected {
		t.Errorf("expected status rejected, got %s", reloaded.Status)
	}
	if reloaded.RejectionReason != "insufficient supporting documents" {
		t.Errorf("rejection reason not recorded: %q", reloaded.RejectionReason)
	}
	if reloaded.ReviewedBy == nil || *reloaded.ReviewedBy != admin.ID {
		t.Errorf("reviewer not recorded: %v", reloaded.ReviewedBy)
	}
}

func TestMarkPaidOnlyFromApproved(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	admin := env.createMember(t, mosque.ID, models.RoleAdmin)
	claimant := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)
	claim := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusApproved, 800)

	env.DB.Model(&models.Claim{}).Where("id = ?", claim.ID).Update("notes", "existing note")

	status, _ := env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/mark-paid", map[string]interface{}{
		"markedBy": admin.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	var reloaded models.Claim
	if err := env.DB.First(&reloaded, "id = ?", claim.ID).Error; err != nil {
		t.Fatalf("failed to reload claim: %v", err)
	}
	if reloaded.Status != models.ClaimStatusPaid {
		t.Errorf("expected status paid, got %s", reloaded.Status)
	}
	if reloaded.PaidAt == nil {
		t.Error("expected paid_at to be set")
	}
	if !strings.HasPrefix(reloaded.Notes, "existing note") || !strings.Contains(reloaded.Notes, "marked as paid") {
		t.Errorf("expected annotation appended to existing notes, got %q", reloaded.Notes)
	}

	// Second mark-paid: paid is terminal, exact message per the API contract.
	status, body := env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/mark-paid", map[string]interface{}{
		"markedBy": admin.ID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 on repeated mark-paid, got %d", status)
	}
	if body["error"] != "Only approved claims can be marked as paid" {
		t.Errorf("unexpected error message: %v", body["error"])
	}

	// Pending claims cannot be marked paid either.
	pending := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusPending, 100)
	status, _ = env.doJSON(t, http.MethodPost, "/claims/"+pending.ID+"/mark-paid", map[string]interface{}{
		"markedBy": admin.ID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for pending claim, got %d", status)
	}
}

func TestUpdateClaimStatusGate(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	admin := env.createMember(t, mosque.ID, models.RoleAdmin)
	claimant := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)

	// Illegal pair: paid is terminal.
	paid := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusPaid, 100)
	status, _ := env.doJSON(t, http.MethodPut, "/claims/"+paid.ID+"/status", map[string]interface{}{
		"status":    models.ClaimStatusApproved,
		"updatedBy": admin.ID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for paid -> approved, got %d", status)
	}
	if got := env.claimStatus(t, paid.ID); got != models.ClaimStatusPaid {
		t.Errorf("stored status must be unchanged, got %s", got)
	}

	// Unknown target status.
	pending := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusPending, 100)
	status, _ = env.doJSON(t, http.MethodPut, "/claims/"+pending.ID+"/status", map[string]interface{}{
		"status":    "refunded",
		"updatedBy": admin.ID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", status)
	}

	// Legal pair: pending -> under_review.
	status, _ = env.doJSON(t, http.MethodPut, "/claims/"+pending.ID+"/status", map[string]interface{}{
		"status":    models.ClaimStatusUnderReview,
		"updatedBy": admin.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 for pending -> under_review, got %d", status)
	}
	if got := env.claimStatus(t, pending.ID); got != models.ClaimStatusUnderReview {
		t.Errorf("expected under_review, got %s", got)
	}
}

func TestCancelClaim(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	claimant := env.createMember(t, mosque.ID, models.RoleMember)
	other := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)
	claim := env.createClaim(t, mosque.ID, claimant.ID, program.ID, models.ClaimStatusPending, 100)

	// A different non-admin member cannot cancel someone else's claim.
	status, _ := env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/cancel", map[string]interface{}{
		"cancelledBy": other.ID,
	})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}

	// The claimant can.
	status, _ = env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/cancel", map[string]interface{}{
		"cancelledBy": claimant.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if got := env.claimStatus(t, claim.ID); got != models.ClaimStatusCancelled {
		t.Errorf("expected cancelled, got %s", got)
	}

	// Cancelled is terminal.
	status, _ = env.doJSON(t, http.MethodPost, "/claims/"+claim.ID+"/cancel", map[string]interface{}{
		"cancelledBy": claimant.ID,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 on cancelling a cancelled claim, got %d", status)
	}
}

func TestSubmitAndListClaims(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	claimant := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)

	status, body := env.doJSON(t, http.MethodPost, "/claims", map[string]interface{}{
		"mosque_id":        mosque.ID,
		"claimant_id":      claimant.ID,
		"program_id":       program.ID,
		"requested_amount": 1500.0,
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", status, body)
	}

	status, body = env.doJSON(t, http.MethodGet, "/mosques/"+mosque.ID+"/claims?status=pending", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	data, ok := body["data"].([]interface{})
	if !ok || len(data) != 1 {
		t.Fatalf("expected one pending claim, got %v", body["data"])
	}

	status, _ = env.doJSON(t, http.MethodGet, "/mosques/"+mosque.ID+"/claims?status=bogus", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status filter, got %d", status)
	}
}
