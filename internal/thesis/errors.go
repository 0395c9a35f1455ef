package thesis

import "github.com/zhou-shi/pentama-app/internal/core"

var (
	ErrDocumentNotFound        = core.NewNotFoundError("document not found")
	ErrAlreadySubmitted        = core.NewConflictError("an active document of this kind already exists")
	ErrPreviousStageIncomplete = core.NewConflictError("the previous stage has not been completed")
	ErrPersonnelIncomplete     = core.NewConflictError("supervisors and examiners must be assigned before approval")
	ErrNotEvaluable            = core.NewConflictError("document is not open for evaluation")
	ErrScoreAlreadySet         = core.NewConflictError("score has already been submitted")
	ErrStaleDocument           = core.NewConflictError("document changed concurrently, reload and retry")
	ErrTerminalStage           = core.NewConflictError("document is in a terminal stage")
	ErrNotParticipant          = core.NewForbiddenError("you are not an evaluator on this document")
)
