package tickets

import (
	"errors"
	"io"
	"net/http"

	"festival/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

type Controller interface {
	// Public
	GetOnSale(c *gin.Context)
	GetStatsSummary(c *gin.Context)
	Reserve(c *gin.Context)

	// Phases
	AdvancePhase(c *gin.Context)
	AdvancePhases(c *gin.Context)

	// Administration
	GetTicketType(c *gin.Context)
	CreateTicketType(c *gin.Context)
	UpdateTicketType(c *gin.Context)
	DeleteTicketType(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) GetOnSale(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}
	editionID, err := query.editionID()
	if err != nil {
		response.RespondError(c, err)
		return
	}

	listing, err := ctrl.service.OnSaleListing(c.Request.Context(), editionID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "On-sale ticket types retrieved successfully", listing, nil)
}

func (ctrl *controller) GetStatsSummary(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}
	editionID, err := query.editionID()
	if err != nil {
		response.RespondError(c, err)
		return
	}

	summary, err := ctrl.service.StatsSummary(c.Request.Context(), editionID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket stats retrieved successfully", summary, nil)
}

func (ctrl *controller) Reserve(c *gin.Context) {
	ticketTypeID, ok := ticketTypeIDParam(c)
	if !ok {
		return
	}

	var req ReserveRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	outcome, err := ctrl.service.Reserve(c.Request.Context(), ticketTypeID, c.ClientIP(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	message := "Tickets reserved successfully"
	if outcome.DryRun {
		message = "Reservation would succeed"
	}
	response.RespondJSON(c, "success", http.StatusOK, message, outcome, nil)
}

func (ctrl *controller) AdvancePhase(c *gin.Context) {
	ticketTypeID, ok := ticketTypeIDParam(c)
	if !ok {
		return
	}

	transition, err := ctrl.service.ExplicitAdvance(c.Request.Context(), ticketTypeID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Phase advanced successfully", transition, nil)
}

func (ctrl *controller) AdvancePhases(c *gin.Context) {
	var req AdvancePhasesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := ctrl.service.AdvancePhases(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Phase progression completed", result, nil)
}

func (ctrl *controller) GetTicketType(c *gin.Context) {
	ticketTypeID, ok := ticketTypeIDParam(c)
	if !ok {
		return
	}

	tt, err := ctrl.service.GetTicketType(c.Request.Context(), ticketTypeID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket type retrieved successfully", tt, nil)
}

func (ctrl *controller) CreateTicketType(c *gin.Context) {
	var req CreateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	tt, err := ctrl.service.CreateTicketType(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Ticket type created successfully", tt, nil)
}

func (ctrl *controller) UpdateTicketType(c *gin.Context) {
	ticketTypeID, ok := ticketTypeIDParam(c)
	if !ok {
		return
	}

	var req UpdateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	tt, err := ctrl.service.UpdateTicketType(c.Request.Context(), ticketTypeID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket type updated successfully", tt, nil)
}

func (ctrl *controller) DeleteTicketType(c *gin.Context) {
	ticketTypeID, ok := ticketTypeIDParam(c)
	if !ok {
		return
	}

	if err := ctrl.service.DeleteTicketType(c.Request.Context(), ticketTypeID); err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket type deleted successfully", nil, nil)
}

func ticketTypeIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid ticket type ID", nil, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON binds the body into req; an empty body leaves req at its
// zero value and still runs the binding validation.
func bindOptionalJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if errors.Is(err, io.EOF) {
		err = binding.Validator.ValidateStruct(req)
	}
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return false
	}
	return true
}
