package services_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"masjid-khairat-system/handlers"
	"masjid-khairat-system/models"
	"masjid-khairat-system/services"
	"masjid-khairat-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	// 32 zero bytes, base64 — good enough for sealing test credentials.
	os.Setenv("CREDENTIAL_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	if err := utils.InitCredentialKey(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testEnv struct {
	App           *fiber.App
	DB            *gorm.DB
	Contributions *services.ContributionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Mosque{},
		&models.Member{},
		&models.KhairatProgram{},
		&models.Claim{},
		&models.Contribution{},
		&models.LegacyRecord{},
		&models.PaymentProvider{},
		&models.WebhookLog{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	app := fiber.New()

	contributions := services.NewContributionService(db)
	contributions.CallbackBaseURL = "http://khairat.test"

	handlers.SetupMosqueRoutes(app, services.NewMosqueService(db), services.NewMemberService(db))
	handlers.SetupClaimRoutes(app, services.NewClaimService(db))
	handlers.SetupPaymentRoutes(app, contributions, services.NewProviderService(db))
	handlers.SetupLegacyRoutes(app, services.NewLegacyService(db))
	handlers.SetupWebhookRoutes(app, services.NewWebhookService(db))

	return &testEnv{App: app, DB: db, Contributions: contributions}
}

// doJSON fires a JSON request at the app and decodes the response body.
func (e *testEnv) doJSON(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.App.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("failed to decode response %q: %v", string(raw), err)
		}
	}
	return resp.StatusCode, decoded
}

// doForm fires a form-encoded request (webhook style).
func (e *testEnv) doForm(t *testing.T, path, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.App.Test(req, -1)
	if err != nil {
		t.Fatalf("request POST %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("failed to decode response %q: %v", string(raw), err)
		}
	}
	return resp.StatusCode, decoded
}

// --- fixtures ---

func (e *testEnv) createMosque(t *testing.T) *models.Mosque {
	t.Helper()
	mosque := models.Mosque{
		ID:   uuid.NewString(),
		Name: "Masjid Al-Test",
		Slug: "masjid-al-test-" + uuid.NewString()[:8],
	}
	if err := e.DB.Create(&mosque).Error; err != nil {
		t.Fatalf("failed to create mosque fixture: %v", err)
	}
	return &mosque
}

func (e *testEnv) createMember(t *testing.T, mosqueID, role string) *models.Member {
	t.Helper()
	member := models.Member{
		ID:       uuid.NewString(),
		MosqueID: mosqueID,
		FullName: "Test " + role,
		Role:     role,
		IsKariah: true,
	}
	if err := e.DB.Create(&member).Error; err != nil {
		t.Fatalf("failed to create member fixture: %v", err)
	}
	return &member
}

func (e *testEnv) createProgram(t *testing.T, mosqueID string) *models.KhairatProgram {
	t.Helper()
	program := models.KhairatProgram{
		ID:            uuid.NewString(),
		MosqueID:      mosqueID,
		Name:          "Khairat Kematian",
		AnnualFee:     50,
		BenefitAmount: 2000,
		IsActive:      true,
	}
	if err := e.DB.Create(&program).Error; err != nil {
		t.Fatalf("failed to create program fixture: %v", err)
	}
	return &program
}

func (e *testEnv) createClaim(t *testing.T, mosqueID, claimantID, programID, status string, requested float64) *models.Claim {
	t.Helper()
	claim := models.Claim{
		ID:              uuid.NewString(),
		MosqueID:        mosqueID,
		ClaimantID:      claimantID,
		ProgramID:       programID,
		RequestedAmount: requested,
		Status:          status,
	}
	if err := e.DB.Create(&claim).Error; err != nil {
		t.Fatalf("failed to create claim fixture: %v", err)
	}
	return &claim
}

func (e *testEnv) createProvider(t *testing.T, mosqueID, gateway, secret, collectionRef string) *models.PaymentProvider {
	t.Helper()
	sealed, err := utils.SealSecret(secret)
	if err != nil {
		t.Fatalf("failed to seal fixture secret: %v", err)
	}
	provider := models.PaymentProvider{
		ID:              uuid.NewString(),
		MosqueID:        mosqueID,
		GatewayType:     gateway,
		EncryptedSecret: sealed,
		CollectionRef:   collectionRef,
		IsActive:        true,
	}
	if err := e.DB.Create(&provider).Error; err != nil {
		t.Fatalf("failed to create provider fixture: %v", err)
	}
	return &provider
}

func (e *testEnv) createContribution(t *testing.T, mosqueID, programID, method, status string, reference *string, amount float64) *models.Contribution {
	t.Helper()
	contribution := models.Contribution{
		ID:               uuid.NewString(),
		MosqueID:         mosqueID,
		ProgramID:        programID,
		PayerName:        "Penyumbang Test",
		Amount:           amount,
		PaymentMethod:    method,
		PaymentReference: reference,
		Status:           status,
	}
	if err := e.DB.Create(&contribution).Error; err != nil {
		t.Fatalf("failed to create contribution fixture: %v", err)
	}
	return &contribution
}

func (e *testEnv) claimStatus(t *testing.T, claimID string) string {
	t.Helper()
	var claim models.Claim
	if err := e.DB.First(&claim, "id = ?", claimID).Error; err != nil {
		t.Fatalf("failed to reload claim: %v", err)
	}
	return claim.Status
}

func (e *testEnv) contributionStatus(t *testing.T, id string) string {
	t.Helper()
	var contribution models.Contribution
	if err := e.DB.First(&contribution, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload contribution: %v", err)
	}
	return contribution.Status
}

func (e *testEnv) backdate(t *testing.T, model interface{}, id string, age time.Duration) {
	t.Helper()
	err := e.DB.Model(model).Where("id = ?", id).
		Update("created_at", time.Now().Add(-age)).Error
	if err != nil {
		t.Fatalf("failed to backdate fixture: %v", err)
	}
}

func strPtr(s string) *string { return &s }
