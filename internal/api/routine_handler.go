package api

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoutineHandler serves the routine catalog plus activation and completion.
type RoutineHandler struct {
	routineService    service.RoutineService
	activationService service.ActivationService
	executionService  service.ExecutionService
	log               *zap.Logger
}

func NewRoutineHandler(
	routineService service.RoutineService,
	activationService service.ActivationService,
	executionService service.ExecutionService,
	log *zap.Logger,
) *RoutineHandler {
	return &RoutineHandler{
		routineService:    routineService,
		activationService: activationService,
		executionService:  executionService,
		log:               log,
	}
}

// --- DTOs ---

// CreateRoutineRequest names the plan directly or through the client's active plan.
type CreateRoutineRequest struct {
	Name      string  `json:"name" binding:"required"`
	PlanID    *string `json:"planId"`
	ClientDNI string  `json:"clientDni"`
	Active    *bool   `json:"active"`
}

type SessionRequest struct {
	ID              *string  `json:"id"`
	ExerciseID      *string  `json:"exerciseId"`
	ExerciseName    string   `json:"exerciseName"`
	Sets            int      `json:"sets"`
	Reps            int      `json:"reps"`
	Weight          *float64 `json:"weight"`
	RestTime        string   `json:"restTime"`
	ExpectedVersion *int64   `json:"expectedVersion"`
}

// PatchSessionRequest only touches the fields present. Weight null clears it.
type PatchSessionRequest struct {
	ExerciseID      *string  `json:"exerciseId"`
	ExerciseName    *string  `json:"exerciseName"`
	Sets            *int     `json:"sets"`
	Reps            *int     `json:"reps"`
	Weight          *float64 `json:"weight"`
	ClearWeight     bool     `json:"clearWeight"`
	RestTime        *string  `json:"restTime"`
	ExpectedVersion *int64   `json:"expectedVersion"`
}

type CompleteRoutineRequest struct {
	Observation string `json:"observation"`
}

type SessionResponse struct {
	ID           string   `json:"id"`
	ExerciseID   string   `json:"exerciseId,omitempty"`
	ExerciseName string   `json:"exerciseName"`
	Sets         int      `json:"sets"`
	Reps         int      `json:"reps"`
	Weight       *float64 `json:"weight,omitempty"`
	RestTime     string   `json:"restTime"`
}

type RoutineResponse struct {
	ID             string            `json:"id"`
	PlanID         string            `json:"planId"`
	TrainerID      string            `json:"trainerId"`
	ClientDNI      string            `json:"clientDni"`
	Name           string            `json:"name"`
	Sessions       []SessionResponse `json:"sessions"`
	Active         bool              `json:"active"`
	Completed      bool              `json:"completed"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
	InProgress     bool              `json:"inProgress"`
	CurrentDiaryID string            `json:"currentDiaryId,omitempty"`
	Version        int64             `json:"version"`
	CreationDate   time.Time         `json:"creationDate"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// SessionMutationResponse returns the touched line and the routine version it produced.
type SessionMutationResponse struct {
	Session SessionResponse `json:"session"`
	Routine RoutineResponse `json:"routine"`
}

type ActivateRoutineResponse struct {
	DiaryID string `json:"diaryId"`
}

type CompleteRoutineResponse struct {
	Signal       domain.SignalKind `json:"signal"`
	Transitioned bool              `json:"transitioned"`
	Published    bool              `json:"published"`
	DiaryID      string            `json:"diaryId,omitempty"`
}

func MapSessionToResponse(s *domain.Session) SessionResponse {
	if s == nil {
		return SessionResponse{}
	}
	resp := SessionResponse{
		ID:           s.ID.Hex(),
		ExerciseName: s.ExerciseName,
		Sets:         s.Sets,
		Reps:         s.Reps,
		Weight:       s.Weight,
		RestTime:     s.RestTime,
	}
	if !s.ExerciseID.IsZero() {
		resp.ExerciseID = s.ExerciseID.Hex()
	}
	return resp
}

func MapRoutineToResponse(r *domain.Routine) RoutineResponse {
	if r == nil {
		return RoutineResponse{}
	}
	resp := RoutineResponse{
		ID:           r.ID.Hex(),
		PlanID:       r.PlanID.Hex(),
		TrainerID:    r.TrainerID.Hex(),
		ClientDNI:    r.ClientDNI,
		Name:         r.Name,
		Sessions:     make([]SessionResponse, len(r.Sessions)),
		Active:       r.Active,
		Completed:    r.Completed,
		CompletedAt:  r.CompletedAt,
		InProgress:   r.InProgress,
		Version:      r.Version,
		CreationDate: r.CreationDate,
		UpdatedAt:    r.UpdatedAt,
	}
	for i := range r.Sessions {
		resp.Sessions[i] = MapSessionToResponse(&r.Sessions[i])
	}
	if r.CurrentDiaryID != nil {
		resp.CurrentDiaryID = r.CurrentDiaryID.Hex()
	}
	return resp
}

func MapRoutinesToResponse(routines []domain.Routine) []RoutineResponse {
	out := make([]RoutineResponse, len(routines))
	for i := range routines {
		out[i] = MapRoutineToResponse(&routines[i])
	}
	return out
}

func (req SessionRequest) toInput() (service.SessionInput, error) {
	id, err := parseOptionalObjectID(req.ID, "session id")
	if err != nil {
		return service.SessionInput{}, err
	}
	exerciseID, err := parseOptionalObjectID(req.ExerciseID, "exerciseId")
	if err != nil {
		return service.SessionInput{}, err
	}
	return service.SessionInput{
		ID:              id,
		ExerciseID:      exerciseID,
		ExerciseName:    req.ExerciseName,
		Sets:            req.Sets,
		Reps:            req.Reps,
		Weight:          req.Weight,
		RestTime:        req.RestTime,
		ExpectedVersion: req.ExpectedVersion,
	}, nil
}

// --- Handler Methods ---

// CreateRoutine godoc
// @Summary Add a routine to a plan
// @Description Either planId or clientDni (resolved to the active plan) is required. active=false creates a template.
// @Tags Routines
// @Security BearerAuth
// @Param routine body CreateRoutineRequest true "Routine"
// @Success 201 {object} RoutineResponse
// @Router /routines [post]
func (h *RoutineHandler) CreateRoutine(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req CreateRoutineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	planID, err := parseOptionalObjectID(req.PlanID, "planId")
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}

	var routine *domain.Routine
	switch {
	case planID != nil:
		routine, err = h.routineService.AddRoutine(c.Request.Context(), actor, *planID, req.Name, req.Active)
	case req.ClientDNI != "":
		routine, err = h.routineService.AddRoutineForClient(c.Request.Context(), actor, req.ClientDNI, req.Name, req.Active)
	default:
		abortWithError(c, http.StatusBadRequest, "Validation error: planId or clientDni is required")
		return
	}
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapRoutineToResponse(routine))
}

func (h *RoutineHandler) GetRoutine(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routineID, ok := objectIDParam(c, "routineId")
	if !ok {
		return
	}
	routine, err := h.routineService.GetRoutine(c.Request.Context(), actor, routineID)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapRoutineToResponse(routine))
}

// AddSession godoc
// @Summary Append a session to a routine template
// @Tags Routines
// @Security BearerAuth
// @Param routineId path string true "Routine ID"
// @Param session body SessionRequest true "Session"
// @Success 201 {object} SessionMutationResponse
// @Failure 400 {object} gin.H "Invalid sets, reps, weight or restTime"
// @Failure 409 {object} gin.H "expectedVersion mismatch"
// @Router /routines/{routineId}/sessions [post]
func (h *RoutineHandler) AddSession(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routineID, ok := objectIDParam(c, "routineId")
	if !ok {
		return
	}
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	routine, session, err := h.routineService.AddSession(c.Request.Context(), actor, routineID, input)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, SessionMutationResponse{
		Session: MapSessionToResponse(session),
		Routine: MapRoutineToResponse(routine),
	})
}

// UpsertSession godoc
// @Summary Update the session named by id, or add it when id is absent
// @Tags Routines
// @Security BearerAuth
// @Param routineId path string true "Routine ID"
// @Param session body SessionRequest true "Session"
// @Success 200 {object} SessionMutationResponse
// @Router /routines/{routineId}/sessions [put]
func (h *RoutineHandler) UpsertSession(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routineID, ok := objectIDParam(c, "routineId")
	if !ok {
		return
	}
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	routine, session, err := h.routineService.UpsertSession(c.Request.Context(), actor, routineID, input)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, SessionMutationResponse{
		Session: MapSessionToResponse(session),
		Routine: MapRoutineToResponse(routine),
	})
}

func (h *RoutineHandler) PatchSession(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routineID, ok := objectIDParam(c, "routineId")
	if !ok {
		return
	}
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	var req PatchSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	exerciseID, err := parseOptionalObjectID(req.ExerciseID, "exerciseId")
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	patch := domain.SessionPatch{
		ExerciseID:   exerciseID,
		ExerciseName: req.ExerciseName,
		Sets:         req.Sets,
		Reps:         req.Reps,
		Weight:       req.Weight,
		ClearWeight:  req.ClearWeight,
		RestTime:     req.RestTime,
	}
	routine, session, err := h.routineService.UpdateSession(c.Request.Context(), actor, routineID, sessionID, patch, req.ExpectedVersion)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, SessionMutationResponse{
		Session: MapSessionToResponse(session),
		Routine: MapRoutineToResponse(routine),
	})
}

func (h *RoutineHandler) RemoveSession(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routineID, ok := objectIDParam(c, "routineId")
	if !ok {
		return
	}
	sessionID, ok := objectIDParam(c, "sessionId")
	if !ok {
		return
	}
	routine, err := h.routineService.RemoveSession(c.Request.Context(), actor, routineID, sessionID, nil)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapRoutineToResponse(routine))
}

// ActivateRoutine godoc
// @Summary Start executing a routine
// @Description Opens a training diary for the client and marks the routine in progress.
// @Tags Routines
// @Security BearerAuth
// @Param clientDni path string true "Client DNI"
// @Param routineId path string true "Routine ID"
// @Success 201 {object} ActivateRoutineResponse
// @Failure 404 {object} gin.H "Routine not found"
// @Failure 409 {object} gin.H "Plan not active, routine deactivated, or a sibling is in progress"
// @Router /routines/activate/{clientDni}/{routineId} [post]
func (h *RoutineHandler) ActivateRoutine(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routineID, ok := objectIDParam(c, "routineId")
	if !ok {
		return
	}
	diaryID, err := h.activationService.Activate(c.Request.Context(), actor, routineID, c.Param("clientDni"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, ActivateRoutineResponse{DiaryID: diaryID.Hex()})
}

func (h *RoutineHandler) DeactivateRoutine(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routineID, ok := objectIDParam(c, "routineId")
	if !ok {
		return
	}
	routine, err := h.routineService.DeactivateRoutine(c.Request.Context(), actor, routineID)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapRoutineToResponse(routine))
}

// CompleteRoutine godoc
// @Summary Mark a routine completed for this cycle
// @Description Appends the observation to the routine's diary on every call. The signal is CycleComplete when every active routine of the active plan is completed.
// @Tags Routines
// @Security BearerAuth
// @Param routineId path string true "Routine ID"
// @Param body body CompleteRoutineRequest false "Observation"
// @Success 200 {object} CompleteRoutineResponse
// @Router /routines/{routineId}/complete [put]
func (h *RoutineHandler) CompleteRoutine(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	routineID, ok := objectIDParam(c, "routineId")
	if !ok {
		return
	}
	var req CompleteRoutineRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	result, err := h.executionService.CompleteRoutine(c.Request.Context(), actor, routineID, req.Observation)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	resp := CompleteRoutineResponse{
		Signal:       result.Signal,
		Transitioned: result.Transitioned,
		Published:    result.Published,
	}
	if result.DiaryID != nil {
		resp.DiaryID = result.DiaryID.Hex()
	}
	c.JSON(http.StatusOK, resp)
}
