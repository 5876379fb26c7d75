package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"masjid-khairat-system/models"
	"masjid-khairat-system/services"
)

// stubGateway implements services.GatewayClient with swappable funcs.
type stubGateway struct {
	CreateBillFunc func(ctx context.Context, creds services.GatewayCredentials, req services.BillRequest) (*services.GatewayBill, error)
	BillStatusFunc func(ctx context.Context, creds services.GatewayCredentials, billCode string) (string, error)
}

func (s *stubGateway) CreateBill(ctx context.Context, creds services.GatewayCredentials, req services.BillRequest) (*services.GatewayBill, error) {
	if s.CreateBillFunc != nil {
		return s.CreateBillFunc(ctx, creds, req)
	}
	return &services.GatewayBill{Code: "stub-bill", PaymentURL: "https://gateway.test/stub-bill"}, nil
}

func (s *stubGateway) BillStatus(ctx context.Context, creds services.GatewayCredentials, billCode string) (string, error) {
	if s.BillStatusFunc != nil {
		return s.BillStatusFunc(ctx, creds, billCode)
	}
	return models.ContributionStatusPending, nil
}

func TestCreateContributionViaGateway(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	program := env.createProgram(t, mosque.ID)
	env.createProvider(t, mosque.ID, models.GatewayBillplz, "api-secret", "coll1")

	var seenCreds services.GatewayCredentials
	var seenReq services.BillRequest
	env.Contributions.Gateways[models.PaymentMethodBillplz] = &stubGateway{
		CreateBillFunc: func(ctx context.Context, creds services.GatewayCredentials, req services.BillRequest) (*services.GatewayBill, error) {
			seenCreds = creds
			seenReq = req
			return &services.GatewayBill{Code: "bill-xyz", PaymentURL: "https://billplz.test/bill-xyz"}, nil
		},
	}

	status, body := env.doJSON(t, http.MethodPost, "/contributions", map[string]interface{}{
		"mosque_id":      mosque.ID,
		"program_id":     program.ID,
		"payer_name":     "Fatimah binti Yusof",
		"payer_email":    "fatimah@example.com",
		"amount":         50.0,
		"payment_method": "billplz",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", status, body)
	}
	data := body["data"].(map[string]interface{})
	if data["payment_url"] != "https://billplz.test/bill-xyz" {
		t.Errorf("payment url not surfaced: %v", data["payment_url"])
	}

	if seenCreds.Secret != "api-secret" || seenCreds.CollectionRef != "coll1" {
		t.Errorf("gateway called with wrong credentials: %+v", seenCreds)
	}
	if seenReq.Amount != 50 || seenReq.Name != "Fatimah binti Yusof" {
		t.Errorf("gateway called with wrong bill request: %+v", seenReq)
	}

	var contribution models.Contribution
	if err := env.DB.First(&contribution, "payment_reference = ?", "bill-xyz").Error; err != nil {
		t.Fatalf("contribution with gateway reference not persisted: %v", err)
	}
	if contribution.Status != models.ContributionStatusPending {
		t.Errorf("expected pending until the callback lands, got %s", contribution.Status)
	}
}

func TestCreateContributionRollsBackOnGatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	program := env.createProgram(t, mosque.ID)
	env.createProvider(t, mosque.ID, models.GatewayBillplz, "api-secret", "coll1")

	env.Contributions.Gateways[models.PaymentMethodBillplz] = &stubGateway{
		CreateBillFunc: func(ctx context.Context, creds services.GatewayCredentials, req services.BillRequest) (*services.GatewayBill, error) {
			return nil, errors.New("gateway down")
		},
	}

	status, _ := env.doJSON(t, http.MethodPost, "/contributions", map[string]interface{}{
		"mosque_id":      mosque.ID,
		"program_id":     program.ID,
		"payer_name":     "Fatimah binti Yusof",
		"amount":         50.0,
		"payment_method": "billplz",
	})
	if status != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", status)
	}

	var count int64
	env.DB.Model(&models.Contribution{}).Count(&count)
	if count != 0 {
		t.Errorf("contribution must be rolled back on gateway failure, %d persisted", count)
	}
}

func TestCreateContributionRequiresProvider(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	program := env.createProgram(t, mosque.ID)

	status, _ := env.doJSON(t, http.MethodPost, "/contributions", map[string]interface{}{
		"mosque_id":      mosque.ID,
		"program_id":     program.ID,
		"payer_name":     "Fatimah binti Yusof",
		"amount":         50.0,
		"payment_method": "toyyibpay",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 when no provider is configured, got %d", status)
	}
}

func TestCreateCashContributionCompletesImmediately(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	member := env.createMember(t, mosque.ID, models.RoleMember)
	program := env.createProgram(t, mosque.ID)

	status, body := env.doJSON(t, http.MethodPost, "/contributions", map[string]interface{}{
		"mosque_id":      mosque.ID,
		"program_id":     program.ID,
		"contributor_id": member.ID,
		"payer_name":     member.FullName,
		"amount":         25.0,
		"payment_method": "cash",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", status, body)
	}

	var contribution models.Contribution
	if err := env.DB.First(&contribution, "mosque_id = ?", mosque.ID).Error; err != nil {
		t.Fatalf("cash contribution not persisted: %v", err)
	}
	if contribution.Status != models.ContributionStatusCompleted || contribution.ContributedAt == nil {
		t.Errorf("cash contribution should be completed immediately: %+v", contribution)
	}
}

func TestExpireStaleContributions(t *testing.T) {
	env := newTestEnv(t)
	mosque := env.createMosque(t)
	program := env.createProgram(t, mosque.ID)

	stale := env.createContribution(t, mosque.ID, program.ID,
		models.PaymentMethodBillplz, models.ContributionStatusPending, strPtr("old-bill"), 10)
	env.backdate(t, &models.Contribution{}, stale.ID, 72*time.Hour)

	fresh := env.createContribution(t, mosque.ID, program.ID,
		models.PaymentMethodBillplz, models.ContributionStatusPending, strPtr("new-bill"), 10)

	// Non-gateway rows are never expired, however old.
	legacy := env.createContribution(t, mosque.ID, program.ID,
		models.PaymentMethodLegacy, models.ContributionStatusPending, nil, 10)
	env.backdate(t, &models.Contribution{}, legacy.ID, 500*time.Hour)

	expired, err := env.Contributions.ExpireStaleContributions(48 * time.Hour)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if expired != 1 {
		t.Errorf("expected exactly one expired contribution, got %d", expired)
	}
	if got := env.contributionStatus(t, stale.ID); got != models.ContributionStatusFailed {
		t.Errorf("stale contribution should be failed, got %s", got)
	}
	if got := env.contributionStatus(t, fresh.ID); got != models.ContributionStatusPending {
		t.Errorf("fresh contribution must stay pending, got %s", got)
	}
	if got := env.contributionStatus(t, legacy.ID); got != models.ContributionStatusPending {
		t.Errorf("legacy contribution must not be swept, got %s", got)
	}
}
