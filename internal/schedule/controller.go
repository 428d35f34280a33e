package schedule

import (
	"net/http"

	"festival/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateSlot(c *gin.Context)
	UpdateSlot(c *gin.Context)
	ValidateSlot(c *gin.Context)
	FindConflicts(c *gin.Context)
	AuditEdition(c *gin.Context)
	CopyTemplate(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	RegisterValidators()
	return &controller{service: service}
}

func (ctrl *controller) CreateSlot(c *gin.Context) {
	var req CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	change, err := ctrl.service.CreateSlot(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Slot created successfully", change.ToResponse(), nil)
}

func (ctrl *controller) UpdateSlot(c *gin.Context) {
	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid slot ID", nil, err.Error())
		return
	}

	var req UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	change, err := ctrl.service.UpdateSlot(c.Request.Context(), slotID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Slot updated successfully", change.ToResponse(), nil)
}

func (ctrl *controller) ValidateSlot(c *gin.Context) {
	var req ValidateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	if err := ctrl.service.ValidateSlot(c.Request.Context(), req); err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Slot is valid",
		ValidationResponse{Valid: true, Conflicts: []Conflict{}}, nil)
}

func (ctrl *controller) FindConflicts(c *gin.Context) {
	var req ValidateSlotRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	conflicts, err := ctrl.service.FindConflicts(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Conflicts retrieved successfully",
		ValidationResponse{Valid: len(conflicts) == 0, Conflicts: conflicts}, nil)
}

func (ctrl *controller) AuditEdition(c *gin.Context) {
	editionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid edition ID", nil, err.Error())
		return
	}

	report, err := ctrl.service.AuditEdition(c.Request.Context(), editionID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Edition audited successfully", report, nil)
}

func (ctrl *controller) CopyTemplate(c *gin.Context) {
	var req CopyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	result, err := ctrl.service.CopyTemplate(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	code := http.StatusCreated
	if req.DryRun {
		code = http.StatusOK
	}
	response.RespondJSON(c, "success", code, "Template copied", result, nil)
}
