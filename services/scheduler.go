package services

import (
	"context"
	"os"
	"strconv"
	"time"

	"masjid-khairat-system/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// StartMaintenanceScheduler runs the background jobs: hourly expiry of
// gateway contributions stuck pending, and a nightly export of webhook
// audit logs to object storage (skipped when R2 is not configured).
func (s *ContributionService) StartMaintenanceScheduler(webhooks *WebhookService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	ttl := 48 * time.Hour
	if hours := os.Getenv("PENDING_CONTRIBUTION_TTL_HOURS"); hours != "" {
		if n, err := strconv.Atoi(hours); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Hour
		}
	}

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			expired, err := s.ExpireStaleContributions(ttl)
			if err != nil {
				logrus.WithError(err).Error("pending contribution sweep failed")
				return
			}
			if expired > 0 {
				logrus.WithField("expired", expired).Info("expired stale pending contributions")
			}
		}),
	)

	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(2, 0, 0))),
		gocron.NewTask(func() {
			if !utils.R2Enabled() {
				return
			}
			cutoff := time.Now().Truncate(24 * time.Hour)
			archived, err := webhooks.ArchiveWebhookLogs(cutoff, func(key string, body []byte) error {
				return utils.UploadArchive(context.Background(), key, body)
			})
			if err != nil {
				logrus.WithError(err).Error("webhook log archive failed")
				return
			}
			if archived > 0 {
				logrus.WithField("archived", archived).Info("webhook logs archived")
			}
		}),
	)
}
