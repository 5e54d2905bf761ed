package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RentalHandler struct {
	rentalService service.RentalService
}

func NewRentalHandler(rentalService service.RentalService) *RentalHandler {
	return &RentalHandler{rentalService: rentalService}
}

func (h *RentalHandler) RegisterRoutes(router *gin.RouterGroup) {
	rentals := router.Group("/api/rentals")
	{
		rentals.GET("", middleware.RequireRole("manager", "admin"), h.ListRentals)
		rentals.GET("/my", middleware.RequireRole("employee", "manager", "admin"), h.ListMyRentals)
		rentals.GET("/:id", middleware.RequireRole("employee", "manager", "admin"), h.GetRental)
		rentals.PUT("/:id/pickup", middleware.RequireRole("manager", "admin"), h.ConfirmPickup)
		rentals.PUT("/:id/return", middleware.RequireRole("manager", "admin"), h.ConfirmReturn)
	}
}

// ListRentals returns all rentals, optionally filtered by status
// @Summary      List rentals
// @Tags         rentals
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (CONFIRMED, IN_PROGRESS, COMPLETED, CANCELLED)"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response
// @Router       /api/rentals [get]
func (h *RentalHandler) ListRentals(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.RentalFilter{
		Status: c.Query("status"),
		Page:   p.Page,
		Limit:  p.Limit,
	}

	rentals, total, err := h.rentalService.ListRentals(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   rentals,
		"total":  total,
		"page":   p.Page,
		"limit":  p.Limit,
	})
}

// ListMyRentals returns the authenticated renter's own rentals
// @Summary      List my rentals
// @Tags         rentals
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/rentals/my [get]
func (h *RentalHandler) ListMyRentals(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	p := pagination.Parse(c)

	rentals, total, err := h.rentalService.ListMyRentals(c.Request.Context(), actor, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   rentals,
		"total":  total,
		"page":   p.Page,
		"limit":  p.Limit,
	})
}

// GetRental returns a single rental
// @Summary      Get rental
// @Tags         rentals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Rental ID"
// @Success      200  {object}  response.Response{data=service.RentalResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/rentals/{id} [get]
func (h *RentalHandler) GetRental(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.rentalService.GetRental(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ConfirmPickup records vehicle handoff and moves the rental to IN_PROGRESS
// @Summary      Confirm vehicle pickup
// @Tags         rentals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true   "Rental ID"
// @Param        payload  body      service.PickupDTO  false  "Optional odometer reading"
// @Success      200      {object}  response.Response{data=service.RentalResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/rentals/{id}/pickup [put]
func (h *RentalHandler) ConfirmPickup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req service.PickupDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body — the odometer reading is optional
		req = service.PickupDTO{}
	}

	result, err := h.rentalService.ConfirmPickup(c.Request.Context(), id, actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ConfirmReturn records vehicle return and completes the rental
// @Summary      Confirm vehicle return
// @Tags         rentals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true   "Rental ID"
// @Param        payload  body      service.ReturnDTO  false  "Optional odometer reading and return checklist"
// @Success      200      {object}  response.Response{data=service.RentalResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/rentals/{id}/return [put]
func (h *RentalHandler) ConfirmReturn(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req service.ReturnDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		req = service.ReturnDTO{}
	}

	result, err := h.rentalService.ConfirmReturn(c.Request.Context(), id, actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
