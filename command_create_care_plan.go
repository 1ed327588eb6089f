package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateCarePlanMessage creates a draft care plan for a user
type CreateCarePlanMessage struct {
	UserID      uuid.UUID `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

func (e CreateCarePlanMessage) Type() string { return "user.care_plan.create" }

// CreateCarePlanHandler inserts care plans. The first one flips the
// derived HasCarePlan flag of its owner.
type CreateCarePlanHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewCreateCarePlanHandler creates a handler with sane defaults.
func NewCreateCarePlanHandler(repo RepositoryManager) *CreateCarePlanHandler {
	return &CreateCarePlanHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit care plan events.
func (h *CreateCarePlanHandler) WithActivitySink(sink ActivitySink) *CreateCarePlanHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *CreateCarePlanHandler) WithLogger(logger Logger) *CreateCarePlanHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CreateCarePlanHandler) Execute(ctx context.Context, event CreateCarePlanMessage) (*CarePlan, error) {
	select {
	case <-ctx.Done():
		return nil, internalError(ctx.Err(), "context cancelled during care plan creation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateCarePlanHandler) execute(ctx context.Context, event CreateCarePlanMessage) (*CarePlan, error) {
	if event.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	title := strings.TrimSpace(event.Title)
	if title == "" {
		return nil, ErrMissingFields.WithMetadata(map[string]any{"field": "title"})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	plan := &CarePlan{
		UserID:      event.UserID,
		Title:       title,
		Description: strings.TrimSpace(event.Description),
		Status:      CarePlanStatusDraft,
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().FindByIDTx(ctx, tx, event.UserID); err != nil {
			return err
		}
		_, err := h.repo.CarePlans().CreateTx(ctx, tx, plan)
		return err
	})

	if err != nil {
		var richErr *Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, internalError(err, "care plan transaction failed")
	}

	h.logger.Info("care plan created", "user_id", event.UserID.String(), "care_plan_id", plan.ID.String())

	emitActivity(ctx, h.activity, h.logger, time.Now, ActivityEvent{
		EventType: ActivityEventCarePlanCreated,
		UserID:    event.UserID.String(),
		Metadata:  map[string]any{"care_plan_id": plan.ID.String()},
	})

	return plan, nil
}
