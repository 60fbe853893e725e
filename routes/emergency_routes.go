package routes

import (
	"rideguard/internal/handlers"
	"rideguard/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupEmergencyRoutes wires the incident lifecycle endpoints
func SetupEmergencyRoutes(r *gin.RouterGroup, emergencyHandler *handlers.EmergencyHandler, jwtSecret string) {
	emergencies := r.Group("/emergencies")
	emergencies.Use(middleware.AuthRequired(jwtSecret))
	{
		emergencies.POST("/", emergencyHandler.TriggerEmergency)
		emergencies.GET("/history", emergencyHandler.GetUserEmergencies)
		emergencies.GET("/:id", emergencyHandler.GetEmergency)
		emergencies.PUT("/:id/resolve", emergencyHandler.ResolveEmergency)
		emergencies.POST("/:id/acknowledge", emergencyHandler.AcknowledgeEmergency)
		emergencies.POST("/:id/location", emergencyHandler.UpdateLocation)
		emergencies.POST("/:id/media", emergencyHandler.UploadMedia)
		emergencies.POST("/:id/false-alarm", emergencyHandler.FlagFalseAlarm)
		emergencies.DELETE("/:id/false-alarm", emergencyHandler.UnflagFalseAlarm)
	}

	admin := r.Group("/admin/emergencies")
	admin.Use(middleware.AuthRequired(jwtSecret), middleware.AdminRequired())
	{
		admin.GET("/active", emergencyHandler.GetActiveEmergencies)
	}
}

// SetupContactRoutes wires emergency contact management
func SetupContactRoutes(r *gin.RouterGroup, contactHandler *handlers.ContactHandler, jwtSecret string) {
	contacts := r.Group("/emergency-contacts")
	contacts.Use(middleware.AuthRequired(jwtSecret))
	{
		contacts.POST("/", contactHandler.AddContact)
		contacts.GET("/", contactHandler.ListContacts)
		contacts.PUT("/:id", contactHandler.UpdateContact)
		contacts.DELETE("/:id", contactHandler.DeleteContact)
	}
}
