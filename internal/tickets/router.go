package tickets

import (
	"github.com/gin-gonic/gin"
)

func SetupTicketRoutes(router *gin.RouterGroup, controller Controller) {
	tickets := router.Group("/tickets")
	{
		tickets.GET("/on-sale", controller.GetOnSale)               // GET /api/v1/tickets/on-sale - On-sale listing
		tickets.GET("/stats/summary", controller.GetStatsSummary)   // GET /api/v1/tickets/stats/summary - Inventory summary
		tickets.POST("/phases/advance", controller.AdvancePhases)   // POST /api/v1/tickets/phases/advance - Batch progression
		tickets.GET("/:id", controller.GetTicketType)               // GET /api/v1/tickets/:id - Ticket type details
		tickets.POST("/:id/reserve", controller.Reserve)            // POST /api/v1/tickets/:id/reserve - Reserve tickets
		tickets.POST("/:id/phase/advance", controller.AdvancePhase) // POST /api/v1/tickets/:id/phase/advance - Next phase
	}

	admin := router.Group("/admin/tickets")
	{
		admin.POST("", controller.CreateTicketType)       // POST /api/v1/admin/tickets - Create ticket type
		admin.PUT("/:id", controller.UpdateTicketType)    // PUT /api/v1/admin/tickets/:id - Update ticket type
		admin.DELETE("/:id", controller.DeleteTicketType) // DELETE /api/v1/admin/tickets/:id - Delete ticket type
	}
}
