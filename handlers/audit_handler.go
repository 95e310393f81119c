package handlers

import (
	"errors"
	"net/http"

	"claimaudit-backend/models"
	"claimaudit-backend/repository"
	"claimaudit-backend/service"

	"github.com/gin-gonic/gin"
)

// AuditHandler handles HTTP requests for claim audits
type AuditHandler struct {
	auditService *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// RunAudit handles POST /api/audits
func (h *AuditHandler) RunAudit(c *gin.Context) {
	var req models.ClaimInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.auditService.RunAudit(c.Request.Context(), req)
	if err != nil {
		var verr *models.ValidationError
		var perr *service.PersistenceError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_CLAIM",
					"message": verr.Error(),
					"issues":  verr.Issues,
				},
			})
		case errors.As(err, &perr):
			// The decision was computed but not recorded; return it so the
			// caller can see it, with a status that says the record is gone.
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"data":    result,
				"error": gin.H{
					"code":    "AUDIT_NOT_RECORDED",
					"message": perr.Error(),
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "AUDIT_FAILED",
					"message": err.Error(),
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetAudit handles GET /api/audits/:id
func (h *AuditHandler) GetAudit(c *gin.Context) {
	result, err := h.auditService.GetAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Audit record not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
