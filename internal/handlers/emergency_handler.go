package handlers

import (
	"net/http"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/internal/services"
	"rideguard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EmergencyHandler struct {
	emergencyService services.EmergencyService
}

func NewEmergencyHandler(emergencyService services.EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{
		emergencyService: emergencyService,
	}
}

// TriggerEmergency opens a new incident and starts escalation monitoring
func (h *EmergencyHandler) TriggerEmergency(c *gin.Context) {
	var request models.TriggerEmergencyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	emergency, err := h.emergencyService.TriggerEmergency(c.Request.Context(), userID, &request)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "EMERGENCY_TRIGGER_FAILED", "Failed to trigger emergency: "+err.Error())
		return
	}

	utils.CreatedResponse(c, "Emergency triggered", emergency)
}

// GetEmergency retrieves one incident with its full timeline
func (h *EmergencyHandler) GetEmergency(c *gin.Context) {
	id, ok := emergencyIDParam(c)
	if !ok {
		return
	}

	emergency, err := h.emergencyService.GetEmergency(c.Request.Context(), id)
	if err != nil {
		if err == interfaces.ErrEmergencyNotFound {
			utils.NotFoundResponse(c, "Emergency")
			return
		}
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponse(c, "Emergency retrieved", emergency)
}

// ResolveEmergency closes an incident. Resolving an already-terminal
// incident is a no-op and reports the existing state.
func (h *EmergencyHandler) ResolveEmergency(c *gin.Context) {
	id, ok := emergencyIDParam(c)
	if !ok {
		return
	}

	var request models.ResolveEmergencyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	emergency, applied, err := h.emergencyService.ResolveEmergency(c.Request.Context(), id, userID, &request)
	if err != nil {
		if err == interfaces.ErrEmergencyNotFound {
			utils.NotFoundResponse(c, "Emergency")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "EMERGENCY_RESOLVE_FAILED", "Failed to resolve emergency: "+err.Error())
		return
	}

	if !applied {
		utils.SuccessResponse(c, "Emergency already closed", emergency)
		return
	}

	utils.SuccessResponse(c, "Emergency resolved", emergency)
}

// AcknowledgeEmergency records that a responder has seen the incident
func (h *EmergencyHandler) AcknowledgeEmergency(c *gin.Context) {
	id, ok := emergencyIDParam(c)
	if !ok {
		return
	}

	var request models.AcknowledgeEmergencyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	err := h.emergencyService.AcknowledgeEmergency(c.Request.Context(), id, userID, &request)
	if err != nil {
		if err == interfaces.ErrEmergencyNotFound {
			utils.NotFoundResponse(c, "Emergency")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "EMERGENCY_ACK_FAILED", "Failed to acknowledge emergency: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Emergency acknowledged", nil)
}

// UpdateLocation appends a point to the incident's location trail
func (h *EmergencyHandler) UpdateLocation(c *gin.Context) {
	id, ok := emergencyIDParam(c)
	if !ok {
		return
	}

	var location models.Location
	if err := c.ShouldBindJSON(&location); err != nil {
		utils.BadRequestResponse(c, "Invalid location: "+err.Error())
		return
	}

	err := h.emergencyService.UpdateLocation(c.Request.Context(), id, location)
	if err != nil {
		if err == interfaces.ErrEmergencyNotFound {
			utils.NotFoundResponse(c, "Emergency")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "LOCATION_UPDATE_FAILED", "Failed to update location: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Location updated", nil)
}

// UploadMedia attaches evidence (photo, audio, video) to an incident
func (h *EmergencyHandler) UploadMedia(c *gin.Context) {
	id, ok := emergencyIDParam(c)
	if !ok {
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "File is required")
		return
	}

	mediaType := c.DefaultPostForm("type", "photo")

	file, err := fileHeader.Open()
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "FILE_READ_FAILED", utils.ErrFileUploadFailed)
		return
	}
	defer file.Close()

	media, err := h.emergencyService.AttachMedia(
		c.Request.Context(),
		id,
		userID,
		mediaType,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		if err == interfaces.ErrEmergencyNotFound {
			utils.NotFoundResponse(c, "Emergency")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "MEDIA_UPLOAD_FAILED", "Failed to upload media: "+err.Error())
		return
	}

	utils.CreatedResponse(c, "Media attached", media)
}

// FlagFalseAlarm records a user report that the incident was a false alarm
func (h *EmergencyHandler) FlagFalseAlarm(c *gin.Context) {
	id, ok := emergencyIDParam(c)
	if !ok {
		return
	}

	emergency, err := h.emergencyService.FlagFalseAlarm(c.Request.Context(), id, true)
	if err != nil {
		if err == interfaces.ErrEmergencyNotFound {
			utils.NotFoundResponse(c, "Emergency")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "FALSE_ALARM_FLAG_FAILED", "Failed to flag false alarm: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "False alarm reported", emergency)
}

// UnflagFalseAlarm withdraws a false-alarm report
func (h *EmergencyHandler) UnflagFalseAlarm(c *gin.Context) {
	id, ok := emergencyIDParam(c)
	if !ok {
		return
	}

	emergency, err := h.emergencyService.FlagFalseAlarm(c.Request.Context(), id, false)
	if err != nil {
		if err == interfaces.ErrEmergencyNotFound {
			utils.NotFoundResponse(c, "Emergency")
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "FALSE_ALARM_FLAG_FAILED", "Failed to withdraw false alarm report: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "False alarm report withdrawn", emergency)
}

// GetUserEmergencies lists the caller's incident history, paginated
func (h *EmergencyHandler) GetUserEmergencies(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	emergencies, total, err := h.emergencyService.GetUserEmergencies(c.Request.Context(), userID, params)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Count:      len(emergencies),
	}
	utils.SuccessResponseWithMeta(c, "Emergencies retrieved", emergencies, meta)
}

// GetActiveEmergencies lists all non-terminal incidents for the admin feed
func (h *EmergencyHandler) GetActiveEmergencies(c *gin.Context) {
	emergencies, err := h.emergencyService.GetActiveEmergencies(c.Request.Context())
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponse(c, "Active emergencies retrieved", emergencies)
}

func emergencyIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid emergency ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return primitive.NilObjectID, false
	}

	return userObjectID, true
}
