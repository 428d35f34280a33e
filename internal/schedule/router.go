package schedule

import (
	"github.com/gin-gonic/gin"
)

func SetupScheduleRoutes(router *gin.RouterGroup, controller Controller) {
	schedule := router.Group("/schedule")
	{
		schedule.POST("/slots", controller.CreateSlot)               // POST /api/v1/schedule/slots - Create slot
		schedule.PUT("/slots/:id", controller.UpdateSlot)            // PUT /api/v1/schedule/slots/:id - Update slot
		schedule.GET("/slots/conflicts", controller.FindConflicts)   // GET /api/v1/schedule/slots/conflicts - Probe conflicts
		schedule.POST("/slots/validate", controller.ValidateSlot)    // POST /api/v1/schedule/slots/validate - Validate only
		schedule.GET("/editions/:id/audit", controller.AuditEdition) // GET /api/v1/schedule/editions/:id/audit - Audit edition
		schedule.POST("/template/copy", controller.CopyTemplate)     // POST /api/v1/schedule/template/copy - Copy template
	}
}
