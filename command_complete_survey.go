package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CompleteSurveyMessage stores a survey submission for a user
type CompleteSurveyMessage struct {
	UserID  uuid.UUID      `json:"-"`
	Answers map[string]any `json:"answers"`
}

func (e CompleteSurveyMessage) Type() string { return "user.survey.complete" }

// CompleteSurveyHandler stores the answers and flips HasCompletedSurvey
// in the same transaction.
type CompleteSurveyHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewCompleteSurveyHandler creates a handler with sane defaults.
func NewCompleteSurveyHandler(repo RepositoryManager) *CompleteSurveyHandler {
	return &CompleteSurveyHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit survey events.
func (h *CompleteSurveyHandler) WithActivitySink(sink ActivitySink) *CompleteSurveyHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *CompleteSurveyHandler) WithLogger(logger Logger) *CompleteSurveyHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CompleteSurveyHandler) Execute(ctx context.Context, event CompleteSurveyMessage) (*Survey, error) {
	select {
	case <-ctx.Done():
		return nil, internalError(ctx.Err(), "context cancelled during survey submission")
	default:
		return h.execute(ctx, event)
	}
}

func (h *CompleteSurveyHandler) execute(ctx context.Context, event CompleteSurveyMessage) (*Survey, error) {
	if event.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	survey := &Survey{
		UserID:  event.UserID,
		Answers: event.Answers,
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Surveys().CreateTx(ctx, tx, survey); err != nil {
			return err
		}
		return h.repo.Users().MarkSurveyCompletedTx(ctx, tx, event.UserID)
	})

	if err != nil {
		var richErr *Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, internalError(err, "survey submission transaction failed")
	}

	h.logger.Info("survey completed", "user_id", event.UserID.String(), "survey_id", survey.ID.String())

	emitActivity(ctx, h.activity, h.logger, time.Now, ActivityEvent{
		EventType: ActivityEventSurveyCompleted,
		UserID:    event.UserID.String(),
		Metadata:  map[string]any{"survey_id": survey.ID.String()},
	})

	return survey, nil
}
