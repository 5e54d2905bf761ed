package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type VehicleHandler struct {
	vehicleService service.VehicleService
}

func NewVehicleHandler(vehicleService service.VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService}
}

func (h *VehicleHandler) RegisterRoutes(router *gin.RouterGroup) {
	vehicles := router.Group("/api/vehicles")
	{
		vehicles.GET("", middleware.RequireRole("employee", "manager", "admin"), h.ListVehicles)
		vehicles.GET("/available", middleware.RequireRole("employee", "manager", "admin"), h.ListAvailable)
		vehicles.GET("/:id", middleware.RequireRole("employee", "manager", "admin"), h.GetVehicle)
	}
}

// ListVehicles returns the fleet registry
// @Summary      List vehicles
// @Tags         vehicles
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number"
// @Param        limit  query     int  false  "Page size"
// @Success      200    {object}  response.Response
// @Router       /api/vehicles [get]
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	p := pagination.Parse(c)

	vehicles, total, err := h.vehicleService.ListVehicles(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   vehicles,
		"total":  total,
		"page":   p.Page,
		"limit":  p.Limit,
	})
}

// ListAvailable returns vehicles free for a date range. The listing is
// advisory; approval re-checks the calendar under lock.
// @Summary      List available vehicles
// @Tags         vehicles
// @Security     BearerAuth
// @Produce      json
// @Param        start_date    query     string  true   "Range start (YYYY-MM-DD)"
// @Param        end_date      query     string  true   "Range end (YYYY-MM-DD)"
// @Param        vehicle_type  query     string  false  "Filter by vehicle type"
// @Success      200           {object}  response.Response
// @Failure      400           {object}  response.Response
// @Router       /api/vehicles/available [get]
func (h *VehicleHandler) ListAvailable(c *gin.Context) {
	vehicles, err := h.vehicleService.ListAvailable(
		c.Request.Context(),
		c.Query("start_date"),
		c.Query("end_date"),
		c.Query("vehicle_type"),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, vehicles))
}

// GetVehicle returns a single vehicle
// @Summary      Get vehicle
// @Tags         vehicles
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Vehicle ID"
// @Success      200  {object}  response.Response{data=service.VehicleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/vehicles/{id} [get]
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.vehicleService.GetVehicle(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
