package handlers

import (
	"masjid-khairat-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPaymentRoutes(app *fiber.App, contributionService *services.ContributionService, providerService *services.ProviderService) {
	app.Post("/contributions", contributionService.CreateContribution)
	app.Get("/mosques/:id/contributions", contributionService.GetMosqueContributions)

	app.Post("/mosques/:id/providers", providerService.CreateProvider)
	app.Get("/mosques/:id/providers", providerService.ListProviders)
	app.Put("/providers/:id", providerService.UpdateProvider)
	app.Delete("/providers/:id", providerService.DeleteProvider)
}
