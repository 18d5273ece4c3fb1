package analyses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"siteaudit-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.startAnalysis)
	rg.GET("/analyses/:id", h.getAnalysis)
}

func (h *Handler) startAnalysis(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "snapshot is required", nil)
		return
	}
	if len(req.Snapshot) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "snapshot must not be empty", nil)
		return
	}

	payload := req.Snapshot
	if req.ProjectCode != "" {
		if _, ok := payload["proyecto_codigo"]; !ok {
			payload["proyecto_codigo"] = req.ProjectCode
		}
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.Start(ctx, StartInput{
		Payload:           payload,
		Model:             req.Model,
		Temperature:       req.Temperature,
		SystemPrompt:      req.SystemPrompt,
		ExtraInstructions: req.ExtraInstructions,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	dto := analysisDTO{
		ID:           analysis.ID,
		ProjectCode:  analysis.ProjectCode,
		Status:       analysis.Status,
		ErrorMessage: analysis.ErrorMessage,
		StartedAt:    analysis.StartedAt,
		CompletedAt:  analysis.CompletedAt,
		CreatedAt:    analysis.CreatedAt,
	}

	if summary, err := h.Svc.SnapshotSummary(c.Request.Context(), analysisID); err == nil {
		dto.Snapshot = &summary
	}

	if analysis.Status == StatusCompleted {
		result, findings, err := h.Svc.Result(c.Request.Context(), analysisID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch result", nil)
			return
		}
		if err == nil {
			dto.Result = toResultDTO(result, findings)
		}
	}

	if invocations, err := h.Svc.Invocations(c.Request.Context(), analysisID); err == nil {
		dto.Invocations = toInvocationDTOs(invocations)
	}

	respond.JSON(c, http.StatusOK, dto)
}
