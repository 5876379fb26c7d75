package handlers

import (
	"masjid-khairat-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupClaimRoutes(app *fiber.App, claimService *services.ClaimService) {
	app.Post("/claims", claimService.SubmitClaim)
	app.Get("/claims/:id", claimService.GetClaim)
	app.Get("/mosques/:id/claims", claimService.GetMosqueClaims)

	// Admin status actions
	app.Post("/claims/:id/approve", claimService.ApproveClaim)
	app.Post("/claims/:id/reject", claimService.RejectClaim)
	app.Post("/claims/:id/mark-paid", claimService.MarkClaimPaid)
	app.Put("/claims/:id/status", claimService.UpdateClaimStatus)

	// Claimant action
	app.Post("/claims/:id/cancel", claimService.CancelClaim)
}
