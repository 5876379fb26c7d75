package handlers

import (
	"masjid-khairat-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLegacyRoutes(app *fiber.App, legacyService *services.LegacyService) {
	app.Post("/legacy-records/import", legacyService.ImportLegacyRecords)
	app.Get("/mosques/:id/legacy-records", legacyService.GetMosqueLegacyRecords)

	app.Post("/legacy-records/match", legacyService.MatchLegacyRecord)
	app.Post("/legacy-records/unmatch", legacyService.UnmatchLegacyRecord)
	app.Post("/legacy-records/bulk-match", legacyService.BulkMatchLegacyRecords)
	app.Post("/legacy-records/bulk-unmatch", legacyService.BulkUnmatchLegacyRecords)
}
