package handlers

import (
	"net/http"

	"rideguard/internal/models"
	"rideguard/internal/repositories/interfaces"
	"rideguard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContactHandler struct {
	contactRepo interfaces.EmergencyContactRepository
}

func NewContactHandler(contactRepo interfaces.EmergencyContactRepository) *ContactHandler {
	return &ContactHandler{
		contactRepo: contactRepo,
	}
}

// AddContact registers an emergency contact for the caller
func (h *ContactHandler) AddContact(c *gin.Context) {
	var contact models.EmergencyContact
	if err := c.ShouldBindJSON(&contact); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	contact.UserID = userID

	if contact.Name == "" || contact.Phone == "" {
		utils.BadRequestResponse(c, "Name and phone are required")
		return
	}
	if !utils.IsValidPhone(contact.Phone) {
		utils.BadRequestResponse(c, "Invalid phone number")
		return
	}
	contact.Phone = utils.NormalizePhone(contact.Phone)

	existing, err := h.contactRepo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}
	if len(existing) >= utils.MaxEmergencyContacts {
		utils.ConflictResponse(c, "Emergency contact limit reached")
		return
	}

	if err := h.contactRepo.Create(c.Request.Context(), &contact); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONTACT_CREATE_FAILED", "Failed to add contact: "+err.Error())
		return
	}

	utils.CreatedResponse(c, "Emergency contact added", contact)
}

// ListContacts returns the caller's emergency contacts
func (h *ContactHandler) ListContacts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	contacts, err := h.contactRepo.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		utils.InternalServerErrorResponse(c)
		return
	}

	utils.SuccessResponse(c, "Emergency contacts retrieved", contacts)
}

// UpdateContact edits one of the caller's emergency contacts
func (h *ContactHandler) UpdateContact(c *gin.Context) {
	contactID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid contact ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	existing, err := h.contactRepo.GetByID(c.Request.Context(), contactID)
	if err != nil {
		if err == interfaces.ErrContactNotFound {
			utils.NotFoundResponse(c, "Contact")
			return
		}
		utils.InternalServerErrorResponse(c)
		return
	}
	if existing.UserID != userID {
		utils.ForbiddenResponse(c)
		return
	}

	var contact models.EmergencyContact
	if err := c.ShouldBindJSON(&contact); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	contact.ID = contactID
	contact.UserID = userID

	if contact.Phone != "" {
		if !utils.IsValidPhone(contact.Phone) {
			utils.BadRequestResponse(c, "Invalid phone number")
			return
		}
		contact.Phone = utils.NormalizePhone(contact.Phone)
	}

	if err := h.contactRepo.Update(c.Request.Context(), &contact); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONTACT_UPDATE_FAILED", "Failed to update contact: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Emergency contact updated", contact)
}

// DeleteContact removes one of the caller's emergency contacts
func (h *ContactHandler) DeleteContact(c *gin.Context) {
	contactID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid contact ID")
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	existing, err := h.contactRepo.GetByID(c.Request.Context(), contactID)
	if err != nil {
		if err == interfaces.ErrContactNotFound {
			utils.NotFoundResponse(c, "Contact")
			return
		}
		utils.InternalServerErrorResponse(c)
		return
	}
	if existing.UserID != userID {
		utils.ForbiddenResponse(c)
		return
	}

	if err := h.contactRepo.Delete(c.Request.Context(), contactID); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONTACT_DELETE_FAILED", "Failed to delete contact: "+err.Error())
		return
	}

	utils.NoContentResponse(c)
}
