package api

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/service"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DiaryHandler serves training diaries, session logging and attachments.
type DiaryHandler struct {
	diaryService      service.DiaryService
	executionService  service.ExecutionService
	attachmentService service.AttachmentService
	log               *zap.Logger
}

func NewDiaryHandler(
	diaryService service.DiaryService,
	executionService service.ExecutionService,
	attachmentService service.AttachmentService,
	log *zap.Logger,
) *DiaryHandler {
	return &DiaryHandler{
		diaryService:      diaryService,
		executionService:  executionService,
		attachmentService: attachmentService,
		log:               log,
	}
}

// --- DTOs ---

type CreateDiaryRequest struct {
	ClientDNI string `json:"clientDni" binding:"required"`
}

type UpdateDiaryRequest struct {
	Observation string `json:"observation"`
}

// RecordSessionRequest is one performed session. Missing fields are taken
// from the template line when sessionId is given.
type RecordSessionRequest struct {
	SessionID      *string  `json:"sessionId"`
	ExerciseID     *string  `json:"exerciseId"`
	ExerciseName   string   `json:"exerciseName"`
	Sets           int      `json:"sets" binding:"min=0"`
	Reps           int      `json:"reps" binding:"min=0"`
	Weight         *float64 `json:"weight"`
	IdempotencyKey string   `json:"idempotencyKey"`
	UpdateTemplate bool     `json:"updateTemplate"`
}

type RequestUploadURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
	FileName    string `json:"fileName" binding:"required"`
}

type ConfirmUploadRequest struct {
	ObjectKey   string `json:"objectKey" binding:"required"`
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	FileSize    int64  `json:"fileSize" binding:"min=0"`
}

type DiaryEntryResponse struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"sessionId,omitempty"`
	ExerciseID     string    `json:"exerciseId,omitempty"`
	ExerciseName   string    `json:"exerciseName"`
	Sets           int       `json:"sets"`
	Reps           int       `json:"reps"`
	Weight         *float64  `json:"weight,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	RecordedAt     time.Time `json:"recordedAt"`
}

type AttachmentResponse struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type DiaryResponse struct {
	ID          string               `json:"id"`
	ClientDNI   string               `json:"clientDni"`
	PlanID      string               `json:"planId,omitempty"`
	RoutineID   string               `json:"routineId,omitempty"`
	Date        time.Time            `json:"date"`
	Sessions    []DiaryEntryResponse `json:"sessions"`
	Observation string               `json:"observation"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

type DownloadURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

func MapDiaryEntryToResponse(e *domain.DiaryEntry) DiaryEntryResponse {
	resp := DiaryEntryResponse{
		ID:             e.ID,
		ExerciseName:   e.ExerciseName,
		Sets:           e.Sets,
		Reps:           e.Reps,
		Weight:         e.Weight,
		IdempotencyKey: e.IdempotencyKey,
		RecordedAt:     e.RecordedAt,
	}
	if e.SessionID != nil {
		resp.SessionID = e.SessionID.Hex()
	}
	if !e.ExerciseID.IsZero() {
		resp.ExerciseID = e.ExerciseID.Hex()
	}
	return resp
}

func MapAttachmentToResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		Size:        a.Size,
		UploadedAt:  a.UploadedAt,
	}
}

func MapDiaryToResponse(d *domain.TrainingDiary) DiaryResponse {
	if d == nil {
		return DiaryResponse{}
	}
	resp := DiaryResponse{
		ID:          d.ID.Hex(),
		ClientDNI:   d.ClientDNI,
		Date:        d.Date,
		Sessions:    make([]DiaryEntryResponse, len(d.Sessions)),
		Observation: d.Observation,
		Attachments: make([]AttachmentResponse, len(d.Attachments)),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.PlanID != nil {
		resp.PlanID = d.PlanID.Hex()
	}
	if d.RoutineID != nil {
		resp.RoutineID = d.RoutineID.Hex()
	}
	for i := range d.Sessions {
		resp.Sessions[i] = MapDiaryEntryToResponse(&d.Sessions[i])
	}
	for i := range d.Attachments {
		resp.Attachments[i] = MapAttachmentToResponse(&d.Attachments[i])
	}
	return resp
}

func MapDiariesToResponse(diaries []domain.TrainingDiary) []DiaryResponse {
	out := make([]DiaryResponse, len(diaries))
	for i := range diaries {
		out[i] = MapDiaryToResponse(&diaries[i])
	}
	return out
}

// parseDateRange reads ?from=&to= as RFC3339 or YYYY-MM-DD. A date-only "to"
// covers that whole day.
func parseDateRange(c *gin.Context) (domain.DateRange, error) {
	var rng domain.DateRange
	parse := func(raw string, endOfDay bool) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q, want RFC3339 or YYYY-MM-DD", raw)
		}
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	var err error
	if raw := c.Query("from"); raw != "" {
		if rng.From, err = parse(raw, false); err != nil {
			return rng, err
		}
	}
	if raw := c.Query("to"); raw != "" {
		if rng.To, err = parse(raw, true); err != nil {
			return rng, err
		}
	}
	return rng, nil
}

// --- Handler Methods ---

// CreateDiary godoc
// @Summary Open an empty training diary
// @Tags Training Diaries
// @Security BearerAuth
// @Param diary body CreateDiaryRequest true "Owner"
// @Success 201 {object} DiaryResponse
// @Router /training-diaries [post]
func (h *DiaryHandler) CreateDiary(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req CreateDiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	diary, err := h.diaryService.Create(c.Request.Context(), actor, req.ClientDNI)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapDiaryToResponse(diary))
}

func (h *DiaryHandler) GetDiary(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	diaryID, ok := objectIDParam(c, "diaryId")
	if !ok {
		return
	}
	diary, err := h.diaryService.Get(c.Request.Context(), actor, diaryID)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapDiaryToResponse(diary))
}

// RecordSession godoc
// @Summary Log a performed session
// @Description Repeating a request with the same idempotencyKey returns the first entry and appends nothing.
// @Tags Training Diaries
// @Security BearerAuth
// @Param diaryId path string true "Diary ID"
// @Param session body RecordSessionRequest true "Performed session"
// @Success 201 {object} DiaryEntryResponse
// @Failure 400 {object} gin.H "Missing exerciseName, reps or weight"
// @Router /training-diaries/{diaryId}/sessions [post]
func (h *DiaryHandler) RecordSession(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	diaryID, ok := objectIDParam(c, "diaryId")
	if !ok {
		return
	}
	var req RecordSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	sessionID, err := parseOptionalObjectID(req.SessionID, "sessionId")
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	exerciseID, err := parseOptionalObjectID(req.ExerciseID, "exerciseId")
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	entry, err := h.executionService.RecordSession(c.Request.Context(), actor, diaryID, service.PerformedSession{
		SessionID:      sessionID,
		ExerciseID:     exerciseID,
		ExerciseName:   req.ExerciseName,
		Sets:           req.Sets,
		Reps:           req.Reps,
		Weight:         req.Weight,
		IdempotencyKey: req.IdempotencyKey,
		UpdateTemplate: req.UpdateTemplate,
	})
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapDiaryEntryToResponse(entry))
}

func (h *DiaryHandler) UpdateDiary(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	diaryID, ok := objectIDParam(c, "diaryId")
	if !ok {
		return
	}
	var req UpdateDiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	diary, err := h.diaryService.Update(c.Request.Context(), actor, diaryID, req.Observation)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapDiaryToResponse(diary))
}

func (h *DiaryHandler) DeleteSessionEntry(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	if err := h.diaryService.DeleteSessionEntry(c.Request.Context(), actor, c.Param("sessionEntryId")); err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListClientDiaries godoc
// @Summary List a client's diaries, newest first
// @Tags Training Diaries
// @Security BearerAuth
// @Param clientDni path string true "Client DNI"
// @Param from query string false "Inclusive lower bound (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Inclusive upper bound (RFC3339 or YYYY-MM-DD)"
// @Success 200 {array} DiaryResponse
// @Router /training-diaries/client/{clientDni} [get]
func (h *DiaryHandler) ListClientDiaries(c *gin.Context) {
	h.list(c, h.diaryService.ListByClient)
}

// ListPlanDiaries lists the diaries linked to the client's active plan.
func (h *DiaryHandler) ListPlanDiaries(c *gin.Context) {
	h.list(c, h.diaryService.ListByPlan)
}

type diaryLister func(ctx context.Context, actor domain.Actor, clientDNI string, rng domain.DateRange) ([]domain.TrainingDiary, error)

func (h *DiaryHandler) list(c *gin.Context, lister diaryLister) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	rng, err := parseDateRange(c)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	diaries, err := lister(c.Request.Context(), actor, c.Param("clientDni"), rng)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MapDiariesToResponse(diaries))
}

// RequestAttachmentUpload godoc
// @Summary Get a pre-signed URL to upload a photo or video for a diary
// @Tags Training Diaries
// @Security BearerAuth
// @Param diaryId path string true "Diary ID"
// @Param uploadRequest body RequestUploadURLRequest true "Upload content type"
// @Success 200 {object} service.UploadURLResponse "Pre-signed URL and object key"
// @Failure 409 {object} gin.H "Attachment storage not configured"
// @Router /training-diaries/{diaryId}/attachments/upload-url [post]
func (h *DiaryHandler) RequestAttachmentUpload(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	diaryID, ok := objectIDParam(c, "diaryId")
	if !ok {
		return
	}
	var req RequestUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	resp, err := h.attachmentService.RequestUploadURL(c.Request.Context(), actor, diaryID, req.ContentType, req.FileName)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DiaryHandler) ConfirmAttachment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	diaryID, ok := objectIDParam(c, "diaryId")
	if !ok {
		return
	}
	var req ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	attachment, err := h.attachmentService.ConfirmUpload(c.Request.Context(), actor, diaryID, req.ObjectKey, req.FileName, req.ContentType, req.FileSize)
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MapAttachmentToResponse(attachment))
}

func (h *DiaryHandler) AttachmentDownloadURL(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	diaryID, ok := objectIDParam(c, "diaryId")
	if !ok {
		return
	}
	url, err := h.attachmentService.DownloadURL(c.Request.Context(), actor, diaryID, c.Param("attachmentId"))
	if err != nil {
		respondWithError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, DownloadURLResponse{DownloadURL: url})
}
