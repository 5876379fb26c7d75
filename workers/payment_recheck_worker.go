package workers

import (
	"context"
	"time"

	"masjid-khairat-system/models"
	"masjid-khairat-system/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PaymentRecheckWorker polls the payment gateways for contributions that
// have been stuck pending longer than StuckAfter, covering callbacks the
// gateway failed to deliver. It applies the same idempotent transition
// as the webhook path.
type PaymentRecheckWorker struct {
	DB         *gorm.DB
	Clients    map[string]services.GatewayClient
	StuckAfter time.Duration
}

func NewPaymentRecheckWorker(db *gorm.DB) *PaymentRecheckWorker {
	return &PaymentRecheckWorker{
		DB: db,
		Clients: map[string]services.GatewayClient{
			models.PaymentMethodBillplz:   services.NewBillplzClient(),
			models.PaymentMethodToyyibPay: services.NewToyyibPayClient(),
		},
		StuckAfter: 15 * time.Minute,
	}
}

// Start polls on the given interval until ctx is cancelled.
func (w *PaymentRecheckWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("payment recheck worker stopped")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				logrus.WithError(err).Error("payment recheck pass failed")
			}
		}
	}
}

// RunOnce processes a single recheck pass.
func (w *PaymentRecheckWorker) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-w.StuckAfter)

	var stuck []models.Contribution
	err := w.DB.Where("status = ? AND payment_reference IS NOT NULL AND payment_method IN ? AND created_at < ?",
		models.ContributionStatusPending,
		[]string{models.PaymentMethodBillplz, models.PaymentMethodToyyibPay},
		cutoff).
		Find(&stuck).Error
	if err != nil {
		return err
	}

	for i := range stuck {
		contribution := &stuck[i]
		client, ok := w.Clients[contribution.PaymentMethod]
		if !ok {
			continue
		}

		creds, err := services.LoadGatewayCredentials(w.DB, contribution.MosqueID, contribution.PaymentMethod)
		if err != nil {
			logrus.WithError(err).WithField("contribution", contribution.ID).Warn("recheck skipped: no credentials")
			continue
		}

		status, err := client.BillStatus(ctx, *creds, *contribution.PaymentReference)
		if err != nil {
			logrus.WithError(err).WithField("contribution", contribution.ID).Warn("recheck skipped: gateway error")
			continue
		}

		changed, err := services.ApplyGatewayStatus(w.DB, contribution, status)
		if err != nil {
			logrus.WithError(err).WithField("contribution", contribution.ID).Error("recheck update failed")
			continue
		}
		if changed {
			logrus.WithFields(logrus.Fields{
				"contribution": contribution.ID,
				"status":       status,
			}).Info("stuck contribution reconciled by recheck")
		}
	}

	return nil
}
