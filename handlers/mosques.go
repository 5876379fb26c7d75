package handlers

import (
	"masjid-khairat-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMosqueRoutes(app *fiber.App, mosqueService *services.MosqueService, memberService *services.MemberService) {
	app.Post("/mosques", mosqueService.CreateMosque)
	app.Get("/mosques", mosqueService.ListMosques)
	app.Get("/mosques/:id", mosqueService.GetMosque)

	app.Post("/mosques/:id/programs", mosqueService.CreateProgram)
	app.Get("/mosques/:id/programs", mosqueService.ListPrograms)

	app.Post("/mosques/:id/members", memberService.RegisterMember)
	app.Get("/mosques/:id/members", memberService.ListMembers)
	app.Patch("/members/:id/promote", memberService.PromoteMember)
}
