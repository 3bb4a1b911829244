package routes

import (
	"spsc-cashround/internal/adapters/http/handlers"
	"spsc-cashround/internal/adapters/http/middleware"
	"spsc-cashround/internal/adapters/persistence/repositories"
	"spsc-cashround/internal/config"
	"spsc-cashround/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config, locker services.RoundLocker) {
	// Initialize repositories
	store := repositories.NewStore(db)
	memberRepo := repositories.NewMemberRepository(db)
	sectionRepo := repositories.NewSectionRepository(db)

	// Initialize services
	roundService := services.NewRoundService(store, locker, memberRepo)
	scheduleService := services.NewScheduleService(store, locker)
	deductionService := services.NewDeductionService(store, locker, sectionRepo)
	// nil recorder: deductions go to collection_deductions in the finalize transaction
	orchestrator := services.NewCycleOrchestrator(store, locker, nil)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	roundHandler := handlers.NewRoundHandler(roundService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService)
	deductionHandler := handlers.NewDeductionHandler(deductionService)
	cycleHandler := handlers.NewCycleHandler(orchestrator)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	protected := apiV1.Group("", middleware.NoCacheHeaders(), middleware.AuthMiddleware(cfg))
	setupRoundRoutes(protected.Group("/cash-rounds"), roundHandler, scheduleHandler, deductionHandler, cycleHandler)
	setupCycleRoutes(protected.Group("/cycles"), cycleHandler, deductionHandler)

	protected.Put("/deduction-rules/:rule_id/deactivate", middleware.OfficerOrAdmin(), deductionHandler.DeactivateRule)
}

// setupRoundRoutes configures cash round routes. Reads are open to every
// authenticated user, mutations need Officer/Admin.
func setupRoundRoutes(
	router fiber.Router,
	rounds *handlers.RoundHandler,
	schedules *handlers.ScheduleHandler,
	deductions *handlers.DeductionHandler,
	cycles *handlers.CycleHandler,
) {
	officer := middleware.OfficerOrAdmin()
	admin := middleware.AdminOnly()

	// Rounds
	router.Get("/", rounds.List)
	router.Post("/", officer, rounds.Create)
	router.Get("/:id", rounds.Get)
	router.Put("/:id", officer, rounds.Update)
	router.Delete("/:id", admin, rounds.Delete)
	router.Post("/:id/archive", admin, rounds.Archive)
	router.Get("/:id/history", rounds.History)

	// Membership
	router.Get("/:id/members", rounds.ListMembers)
	router.Post("/:id/members", officer, rounds.AddMember)
	router.Delete("/:id/members/:memb_no", officer, rounds.RemoveMember)

	// Rotation schedule
	router.Get("/:id/schedule", schedules.Get)
	router.Post("/:id/schedule", officer, schedules.Create)
	router.Put("/:id/schedule", officer, schedules.Reorder)
	router.Delete("/:id/schedule", officer, schedules.Delete)
	router.Post("/:id/schedule/seed", officer, schedules.Seed)
	router.Get("/:id/rotation", schedules.Rotation)

	// Deduction rules
	router.Get("/:id/rules", deductions.ListRules)
	router.Post("/:id/rules", officer, deductions.CreateRule)

	// Lifecycle
	router.Post("/:id/start", officer, cycles.StartRound)
	router.Post("/:id/complete", officer, cycles.CompleteRound)
	router.Post("/:id/cancel", officer, cycles.CancelRound)
	router.Get("/:id/cycles/current", cycles.CurrentCycle)
	router.Get("/:id/cycles", cycles.ListCycles)
	router.Post("/:id/cycles", officer, cycles.StartNextCycle)
}

// setupCycleRoutes configures routes addressed by cycle id
func setupCycleRoutes(router fiber.Router, cycles *handlers.CycleHandler, deductions *handlers.DeductionHandler) {
	officer := middleware.OfficerOrAdmin()

	router.Get("/:cycle_id", cycles.GetCycle)
	router.Get("/:cycle_id/deductions", deductions.CycleDeductions)
	router.Post("/:cycle_id/finalize", officer, cycles.FinalizeCycle)
	router.Post("/:cycle_id/cancel", officer, cycles.CancelCycle)
}
