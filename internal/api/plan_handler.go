// internal/api/plan_handler.go
package api

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PlanHandler struct {
	planService service.PlanService
	log         *zap.Logger
}

func NewPlanHandler(planService service.PlanService, log *zap.Logger) *PlanHandler {
	return &PlanHandler{planService: planService, log: log}
}

// --- DTOs for Training Plans ---

type CreateTrainingPlanRequest struct {
	ClientDNI   string `json:"clientDni" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type TrainingPlanResponse struct {
	ID               string    `json:"id"`
	TrainerID        string    `json:"trainerId"`
	ClientDNI        string    `json:"clientDni"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Active           bool      `json:"active"`
	CycleSignaledFor string    `json:"cycleSignaledFor,omitempty"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func MapTrainingPlanToResponse(plan *domain.TrainingPlan) TrainingPlanResponse {
	if plan == nil {
		return TrainingPlanResponse{}
	}
	return TrainingPlanResponse{
		ID:               plan.ID.Hex(),
		TrainerID:        plan.TrainerID.Hex(),
		ClientDNI:        plan.ClientDNI,
		Name:             plan.Name,
		Description:      plan.Description,
		Active:           plan.Active,
		CycleSignaledFor: plan.CycleSignaledFor,
		Version:          plan.Version,
		CreatedAt:        plan.CreatedAt,
		UpdatedAt:        plan.UpdatedAt,
	}
}

func MapTrainingPlansToResponse(plans []domain.TrainingPlan) []TrainingPlanResponse {
	out := make([]TrainingPlanResponse, len(plans))
	for i := range plans {
		out[i] = MapTrainingPlanToResponse(&plans[i])
	}
	return out
}

// CreateTrainingPlan godoc
// @Summary Create a training plan for a client
// @Description The new plan becomes the client's only active plan; any previous active plan is deactivated.
// @Tags Training Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body CreateTrainingPlanRequest true "Plan details"
// @Success 201 {object} TrainingPlanResponse
// @Failure 403 {object} gin.H "Forbidden (not a trainer, or client managed by another trainer)"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 409 {object} gin.H "Concurrent plan creation"
// @Router /training-plans [post]
func (h *PlanHandler) CreateTrainingPlan(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req CreateTrainingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	plan, err := h.planService.CreatePlan(c.Request.Context(), actor, req.ClientDNI, req.Name, req.Description)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapTrainingPlanToResponse(plan))
}

// GetActivePlan godoc
// @Summary Get the client's active training plan
// @Tags Training Plans
// @Security BearerAuth
// @Param clientDni path string true "Client DNI"
// @Success 200 {object} TrainingPlanResponse
// @Failure 404 {object} gin.H "No active plan"
// @Router /training-plans/active/{clientDni} [get]
func (h *PlanHandler) GetActivePlan(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	plan, err := h.planService.GetActivePlan(c.Request.Context(), actor, c.Param("clientDni"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapTrainingPlanToResponse(plan))
}

func (h *PlanHandler) GetPlanHistory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	plans, err := h.planService.GetHistory(c.Request.Context(), actor, c.Param("clientDni"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapTrainingPlansToResponse(plans))
}

// GetActiveRoutines godoc
// @Summary List the active routines of a plan
// @Tags Training Plans
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {array} RoutineResponse
// @Router /training-plans/{planId}/active-routines [get]
func (h *PlanHandler) GetActiveRoutines(c *gin.Context) {
	h.listRoutines(c, true)
}

// GetRoutines lists every routine of the plan, deactivated ones included.
func (h *PlanHandler) GetRoutines(c *gin.Context) {
	h.listRoutines(c, false)
}

func (h *PlanHandler) listRoutines(c *gin.Context, onlyActive bool) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	routines, err := h.planService.ListRoutines(c.Request.Context(), actor, planID, onlyActive)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapRoutinesToResponse(routines))
}

// GetClientActiveRoutines lists the active routines of the client's active plan.
func (h *PlanHandler) GetClientActiveRoutines(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routines, err := h.planService.ListActiveRoutines(c.Request.Context(), actor, c.Param("clientDni"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapRoutinesToResponse(routines))
}
