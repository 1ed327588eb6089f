package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage changes the editable profile fields. Nil
// fields are left untouched.
type UpdateProfileMessage struct {
	UserID    uuid.UUID `json:"-"`
	FirstName *string   `json:"firstName,omitempty"`
	LastName  *string   `json:"lastName,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
}

func (e UpdateProfileMessage) Type() string { return "user.profile.update" }

// PhoneNormalizer turns user input into E.164
type PhoneNormalizer interface {
	NormalizePhone(phone string) (string, error)
}

// UpdateProfileHandler updates names and phone number
type UpdateProfileHandler struct {
	repo     RepositoryManager
	phones   PhoneNormalizer
	activity ActivitySink
	logger   Logger
}

// NewUpdateProfileHandler creates a handler with sane defaults.
func NewUpdateProfileHandler(repo RepositoryManager, phones PhoneNormalizer) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:     repo,
		phones:   phones,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit profile events.
func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, internalError(ctx.Err(), "context cancelled during profile update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) (*User, error) {
	if event.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	phone := ""
	if event.Phone != nil {
		normalized, err := h.phones.NormalizePhone(*event.Phone)
		if err != nil {
			return nil, err
		}
		phone = normalized
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var updated *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().FindByIDTx(ctx, tx, event.UserID)
		if err != nil {
			return err
		}

		if event.FirstName != nil {
			user.FirstName = strings.TrimSpace(*event.FirstName)
		}
		if event.LastName != nil {
			user.LastName = strings.TrimSpace(*event.LastName)
		}
		if event.Phone != nil {
			user.Phone = phone
		}
		user.Name = strings.TrimSpace(user.FirstName + " " + user.LastName)

		updated, err = h.repo.Users().UpdateTx(ctx, tx, user)
		return err
	})

	if err != nil {
		var richErr *Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, internalError(err, "profile update transaction failed")
	}

	emitActivity(ctx, h.activity, h.logger, time.Now, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		UserID:    updated.ID.String(),
		Email:     updated.Email,
		UserType:  updated.Role,
	})

	return updated, nil
}
