package routes

import (
	"studiomanager_go/controllers"
	"studiomanager_go/database"
	"studiomanager_go/handlers"
	"studiomanager_go/middleware"
	"studiomanager_go/services"
	"studiomanager_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, wsHub *websocket.Hub) {
	// Initialize controllers
	authController := &controllers.AuthController{}
	appointmentController := controllers.NewAppointmentController()
	sessionController := controllers.NewSessionController()
	customerController := &controllers.CustomerController{}
	studioController := &controllers.StudioController{}
	leadController := &controllers.LeadController{}
	reportController := &controllers.ReportController{}
	notificationController := &controllers.NotificationController{}
	logController := &controllers.LogController{}
	healthController := controllers.NewHealthController(services.NewHealthService("", ""))
	wsController := controllers.NewWebSocketController(wsHub)
	bookingWebhook := handlers.NewBookingWebhookHandler(database.DB)

	// Health probe and external booking webhook stay outside the JWT wall
	app.Get("/health", healthController.GetHealthStatus)
	app.Post("/webhooks/booking", bookingWebhook.Handle)

	// API group
	api := app.Group("/api")

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Get("/profile", middleware.JWTMiddleware(), authController.GetProfile)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware(), middleware.LogActivityMiddleware())

	// Profile routes (authenticated users)
	protected.Get("/profile", authController.GetProfile)
	protected.Put("/profile/password", authController.ChangePassword)
	protected.Post("/profile/avatar", authController.UploadAvatar)
	protected.Post("/auth/logout", authController.Logout)

	// Account creation (staff only; owners are limited to customers in their studio)
	protected.Post("/users", middleware.RequireStaff(), authController.Register)

	// Appointment management routes
	appointments := protected.Group("/appointments")
	appointments.Get("/", appointmentController.GetAppointments)
	appointments.Post("/", appointmentController.CreateAppointment)
	appointments.Post("/conflicts", appointmentController.CheckConflicts)
	appointments.Post("/sweep", middleware.RequireManager(), appointmentController.RunSweep)
	appointments.Get("/:id", appointmentController.GetAppointment)
	appointments.Put("/:id", appointmentController.UpdateAppointment)
	appointments.Patch("/:id/confirm", middleware.RequireStaff(), appointmentController.ConfirmAppointment)
	appointments.Patch("/:id/cancel", appointmentController.CancelAppointment)
	appointments.Patch("/:id/complete", middleware.RequireStaff(), appointmentController.CompleteAppointment)
	appointments.Patch("/:id/no-show", middleware.RequireStaff(), appointmentController.MarkNoShow)

	// Calendar endpoint
	protected.Get("/calendar", appointmentController.GetCalendarDay)

	// Session credit routes
	sessions := protected.Group("/sessions")
	sessions.Get("/balance", sessionController.GetBalance)
	sessions.Get("/blocks", sessionController.GetBlocks)
	sessions.Get("/blocks/:id/transactions", sessionController.GetTransactions)
	sessions.Post("/add", middleware.RequireStaff(), sessionController.AddSessions)
	sessions.Patch("/blocks/:id/deactivate", middleware.RequireStaff(), sessionController.DeactivateBlock)
	sessions.Patch("/blocks/:id/notes", middleware.RequireStaff(), sessionController.UpdateBlockNotes)

	// Customer management routes (staff only)
	customers := protected.Group("/customers", middleware.RequireStaff())
	customers.Get("/", customerController.GetCustomers)
	customers.Get("/:id", customerController.GetCustomer)
	customers.Put("/:id", customerController.UpdateCustomer)
	customers.Patch("/:id/deactivate", customerController.DeactivateCustomer)
	customers.Get("/:customer_id/balance", sessionController.GetBalance)
	customers.Get("/:customer_id/blocks", sessionController.GetBlocks)

	// Studio management routes
	studios := protected.Group("/studios")
	studios.Get("/", studioController.GetStudios)
	studios.Post("/", middleware.RequireManager(), studioController.CreateStudio)
	studios.Get("/:id", studioController.GetStudio)
	studios.Put("/:id/settings", middleware.RequireStaff(), middleware.RequireSameStudio("id"), studioController.UpdateSettings)
	studios.Get("/:id/appointment-types", studioController.GetAppointmentTypes)
	studios.Post("/:id/appointment-types", middleware.RequireStaff(), middleware.RequireSameStudio("id"), studioController.CreateAppointmentType)
	studios.Put("/appointment-types/:type_id", middleware.RequireStaff(), studioController.UpdateAppointmentType)

	// Lead management routes (staff only)
	leads := protected.Group("/leads", middleware.RequireStaff())
	leads.Get("/", leadController.GetLeads)
	leads.Post("/", leadController.CreateLead)
	leads.Put("/:id", leadController.UpdateLead)
	leads.Post("/:id/convert", leadController.ConvertLead)

	// Reporting routes (staff only)
	reports := protected.Group("/reports", middleware.RequireStaff())
	reports.Get("/dashboard", reportController.GetDashboardStats)
	reports.Get("/appointments/export", reportController.ExportAppointments)
	reports.Get("/sessions/export", reportController.ExportSessionLedger)

	// Notification management routes
	notifications := protected.Group("/notifications")
	notifications.Get("/", notificationController.GetNotifications)
	notifications.Get("/unread-count", notificationController.GetUnreadCount)
	notifications.Get("/stats", middleware.RequireStaff(), notificationController.GetNotificationStats)
	notifications.Get("/:id", notificationController.GetNotification)
	notifications.Post("/", middleware.RequireStaff(), notificationController.CreateNotification)
	notifications.Patch("/:id/read", notificationController.MarkAsRead)
	notifications.Patch("/mark-all-read", notificationController.MarkAllAsRead)
	notifications.Delete("/:id", notificationController.DeleteNotification)

	// Log management routes (managers only)
	logs := protected.Group("/logs", middleware.RequireManager())
	logs.Get("/", logController.GetLogs)
	logs.Get("/stats", logController.GetLogStats)
	logs.Get("/export", logController.ExportLogs)
	logs.Delete("/old", logController.DeleteOldLogs)
	logs.Post("/flush-cache", logController.FlushCachedLogs)
	logs.Get("/:id", logController.GetLog)

	// WebSocket routes
	ws := protected.Group("/ws")
	ws.Get("/stats", middleware.RequireManager(), wsController.GetWebSocketStats)

	// WebSocket connection endpoint - use websocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		// IsWebSocketUpgrade returns true if the client
		// requested upgrade to the WebSocket protocol.
		if fiberws.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", wsController.WebSocketHandler())
}

// SetupStaticRoutes configures static file serving
func SetupStaticRoutes(app *fiber.App) {
	// Serve static files if needed
	app.Static("/", "./public")
}
