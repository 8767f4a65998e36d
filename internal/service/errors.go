package service

import (
	"alcyxob/fitness-coach/internal/errs"
	"fmt"
)

// Service errors wrap a sentinel from errs so callers can match either the
// specific error or its kind.
var (
	ErrClientNotFound   = fmt.Errorf("client not found: %w", errs.ErrNotFound)
	ErrClientNotManaged = fmt.Errorf("client is not managed by this trainer: %w", errs.ErrForbidden)
	ErrTrainerOnly      = fmt.Errorf("operation requires a trainer: %w", errs.ErrForbidden)
	ErrClientOnly       = fmt.Errorf("operation requires the owning client: %w", errs.ErrForbidden)
	ErrNotAuthenticated = fmt.Errorf("no authenticated actor: %w", errs.ErrUnauthorized)

	ErrPlanNotFound       = fmt.Errorf("training plan not found: %w", errs.ErrNotFound)
	ErrActivePlanNotFound = fmt.Errorf("client has no active training plan: %w", errs.ErrNotFound)
	ErrPlanConflict       = fmt.Errorf("another active plan was created concurrently: %w", errs.ErrConflict)

	ErrRoutineNotFound    = fmt.Errorf("routine not found: %w", errs.ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("session not found in routine: %w", errs.ErrNotFound)
	ErrExerciseNotFound   = fmt.Errorf("exercise not found: %w", errs.ErrNotFound)
	ErrPlanNotActive      = fmt.Errorf("routine belongs to a plan that is not the client's active plan: %w", errs.ErrConflict)
	ErrRoutineInactive    = fmt.Errorf("routine has been deactivated: %w", errs.ErrConflict)
	ErrRoutineNotOwned    = fmt.Errorf("routine does not belong to this client: %w", errs.ErrForbidden)
	ErrSiblingInProgress  = fmt.Errorf("another routine of the plan is in progress: %w", errs.ErrConflict)
	ErrDiaryNotFound      = fmt.Errorf("training diary not found: %w", errs.ErrNotFound)
	ErrDiaryEntryNotFound = fmt.Errorf("diary session entry not found: %w", errs.ErrNotFound)

	ErrStorageDisabled      = fmt.Errorf("attachment storage is not configured: %w", errs.ErrTransient)
	ErrAttachmentNotFound   = fmt.Errorf("attachment not found: %w", errs.ErrNotFound)
	ErrUploadURLError       = fmt.Errorf("failed to generate upload URL: %w", errs.ErrTransient)
	ErrDownloadURLError     = fmt.Errorf("failed to generate download URL: %w", errs.ErrTransient)
	ErrInvalidContentType   = fmt.Errorf("attachments must be images or videos: %w", errs.ErrValidation)
	ErrObjectKeyNotForDiary = fmt.Errorf("object key was not issued for this diary: %w", errs.ErrValidation)
)

// validationError wraps a plain message as errs.ErrValidation.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errs.ErrValidation)
}

// notFoundAs replaces a repository not-found with a more specific service error.
func notFoundAs(err, specific error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return specific
	}
	return err
}
