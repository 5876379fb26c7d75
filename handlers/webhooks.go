package handlers

import (
	"masjid-khairat-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupWebhookRoutes registers the gateway callback endpoints. These are
// exempt from gateway auth; the payment providers POST directly and
// authenticate with payload signatures. GET variants are liveness probes.
func SetupWebhookRoutes(app *fiber.App, webhookService *services.WebhookService) {
	app.Post("/webhooks/billplz/callback", webhookService.HandleBillplzCallback)
	app.Get("/webhooks/billplz/callback", webhookService.BillplzLiveness)

	app.Post("/webhooks/toyyibpay/callback", webhookService.HandleToyyibPayCallback)
	app.Get("/webhooks/toyyibpay/callback", webhookService.ToyyibPayLiveness)
}
