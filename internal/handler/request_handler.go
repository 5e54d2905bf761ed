package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService service.RequestService
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{requestService: requestService}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.POST("", middleware.RequireRole("employee", "manager", "admin"), h.SubmitRequest)
		requests.GET("", middleware.RequireRole("manager", "admin"), h.ListRequests)
		requests.GET("/my", middleware.RequireRole("employee", "manager", "admin"), h.ListMyRequests)
		requests.GET("/:id", middleware.RequireRole("employee", "manager", "admin"), h.GetRequest)
		requests.PUT("/:id/cancel", middleware.RequireRole("employee", "manager", "admin"), h.CancelRequest)
	}
}

// SubmitRequest creates a new rental request in PENDING status
// @Summary      Submit rental request
// @Description  Creates a new rental request for a date range, optionally bound to a preferred vehicle
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubmitRequestDTO  true  "Rental Request Payload"
// @Success      201      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) SubmitRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req service.SubmitRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.requestService.SubmitRequest(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListRequests returns all rental requests, optionally filtered by status
// @Summary      List rental requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (PENDING, APPROVED, REJECTED, CANCELLED)"
// @Param        page    query     int     false  "Page number"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response.Response
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.RequestFilter{
		Status: c.Query("status"),
		Page:   p.Page,
		Limit:  p.Limit,
	}

	requests, total, err := h.requestService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   requests,
		"total":  total,
		"page":   p.Page,
		"limit":  p.Limit,
	})
}

// ListMyRequests returns the authenticated requester's own requests
// @Summary      List my rental requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/requests/my [get]
func (h *RequestHandler) ListMyRequests(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	p := pagination.Parse(c)

	requests, total, err := h.requestService.ListMyRequests(c.Request.Context(), actor, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   requests,
		"total":  total,
		"page":   p.Page,
		"limit":  p.Limit,
	})
}

// GetRequest returns a single rental request with its rental, if realized
// @Summary      Get rental request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, err := h.requestService.GetRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CancelRequest cancels the requester's own request. Pending requests flip
// directly; approved requests also reverse the rental and release the vehicle.
// @Summary      Cancel rental request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/cancel [put]
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}

	result, err := h.requestService.CancelRequest(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
