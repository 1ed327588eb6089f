package auth

import (
	"context"
	"time"
)

// RegisterUserMessage carries a registration request
type RegisterUserMessage struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserType  string `json:"userType"`
	Phone     string `json:"phone,omitempty"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler runs a registration with a bounded deadline
type RegisterUserHandler struct {
	auther  *Auther
	timeout time.Duration
}

// NewRegisterUserHandler creates a handler registering through auther
func NewRegisterUserHandler(auther *Auther) *RegisterUserHandler {
	return &RegisterUserHandler{
		auther:  auther,
		timeout: time.Second * 10,
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, internalError(ctx.Err(), "context cancelled during user registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	return h.auther.Register(ctx, event)
}
