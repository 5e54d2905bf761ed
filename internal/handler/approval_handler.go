package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
}

func NewApprovalHandler(approvalService service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.PUT("/:id/approve", middleware.RequireRole("manager", "admin"), h.ApproveRequest)
		requests.PUT("/:id/reject", middleware.RequireRole("manager", "admin"), h.RejectRequest)
	}
}

// ApproveRequest approves a pending rental request and creates its rental
// @Summary      Approve rental request
// @Description  Approves a pending request after an authoritative conflict check and creates the confirmed rental atomically
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true   "Request ID"
// @Param        payload  body      service.ReviewDTO  false  "Optional review comment"
// @Success      200      {object}  response.Response{data=service.ApprovalResult}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/approve [put]
func (h *ApprovalHandler) ApproveRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	reviewer, ok := actorID(c)
	if !ok {
		return
	}

	var req service.ReviewDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body — comment is optional
		req.Comment = ""
	}

	result, err := h.approvalService.Approve(c.Request.Context(), id, reviewer, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RejectRequest rejects a pending rental request
// @Summary      Reject rental request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true   "Request ID"
// @Param        payload  body      service.ReviewDTO  false  "Optional review comment"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/reject [put]
func (h *ApprovalHandler) RejectRequest(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	reviewer, ok := actorID(c)
	if !ok {
		return
	}

	var req service.ReviewDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Comment = ""
	}

	result, err := h.approvalService.Reject(c.Request.Context(), id, reviewer, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
