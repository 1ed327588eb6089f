package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// MinPasswordLength is the shortest password Register accepts
const MinPasswordLength = 6

// MaxPasswordLength is the bcrypt input limit, in bytes
const MaxPasswordLength = 72

// DefaultPhoneRegion is used to parse phone numbers without a country prefix
const DefaultPhoneRegion = "US"

// UserProvider verifies credentials and registers users against a Users store
type UserProvider struct {
	store       Users
	logger      Logger
	cost        int
	useHashid   bool
	phoneRegion string
}

// UserProviderOption configures a UserProvider
type UserProviderOption func(*UserProvider)

// WithUserProviderLogger sets the logger
func WithUserProviderLogger(l Logger) UserProviderOption {
	return func(u *UserProvider) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithPasswordCost sets the bcrypt cost used by Register
func WithPasswordCost(cost int) UserProviderOption {
	return func(u *UserProvider) {
		u.cost = cost
	}
}

// WithHashidIDs derives user IDs deterministically from the email
func WithHashidIDs(enabled bool) UserProviderOption {
	return func(u *UserProvider) {
		u.useHashid = enabled
	}
}

// WithPhoneRegion sets the region used to normalize local phone numbers
func WithPhoneRegion(region string) UserProviderOption {
	return func(u *UserProvider) {
		if region != "" {
			u.phoneRegion = strings.ToUpper(region)
		}
	}
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store Users, opts ...UserProviderOption) *UserProvider {
	u := &UserProvider{
		store:       store,
		logger:      defLogger{},
		cost:        passwordHashCost(),
		phoneRegion: DefaultPhoneRegion,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

// Verify finds the user by email and compares the password.
// Unknown emails and wrong passwords return the same error.
func (u *UserProvider) Verify(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if err := validation.Validate(email, is.Email); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := u.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// burn a comparison so unknown emails cost the same as wrong passwords
			_ = ComparePasswordAndHash(password, dummyHash())
			return nil, ErrInvalidCredentials
		}
		u.logger.Error("failed to retrieve user during verification", "error", err)
		return nil, internalError(err, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		u.logger.Debug("password mismatch", "user_id", user.ID.String())
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Register validates msg, hashes the password and inserts the user
// if no record owns the email yet.
func (u *UserProvider) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	email := NormalizeEmail(msg.Email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return nil, ErrInvalidEmail.WithMetadata(map[string]any{"email": msg.Email})
	}

	if len(msg.Password) < MinPasswordLength {
		return nil, ErrWeakPassword.WithMetadata(map[string]any{"min_length": MinPasswordLength})
	}

	if len(msg.Password) > MaxPasswordLength {
		return nil, ErrPasswordTooLong.WithMetadata(map[string]any{"max_length": MaxPasswordLength})
	}

	role, ok := ParseRole(msg.UserType)
	if !ok {
		return nil, ErrInvalidRole.WithMetadata(map[string]any{
			"role":    msg.UserType,
			"allowed": GetAllRoles(),
		})
	}

	phone, err := u.normalizePhone(msg.Phone)
	if err != nil {
		return nil, err
	}

	hash, err := HashPasswordWithCost(msg.Password, u.cost)
	if err != nil {
		return nil, err
	}

	firstName := strings.TrimSpace(msg.FirstName)
	lastName := strings.TrimSpace(msg.LastName)

	user := &User{
		ID:           u.newID(email),
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Name:         strings.TrimSpace(firstName + " " + lastName),
		Role:         role,
		Phone:        phone,
	}

	created, err := u.store.InsertIfAbsent(ctx, user)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		u.logger.Error("failed to insert user", "error", err)
		return nil, internalError(err, "failed to register user")
	}

	u.logger.Info("user registered", "user_id", created.ID.String(), "user_type", created.Role)

	return created, nil
}

// NormalizePhone returns phone in E.164 form, or an empty string for empty input
func (u *UserProvider) NormalizePhone(phone string) (string, error) {
	return u.normalizePhone(phone)
}

func (u *UserProvider) normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(phone, u.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone.WithMetadata(map[string]any{"phone": phone})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (u *UserProvider) newID(email string) uuid.UUID {
	if u.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			return id
		}
		u.logger.Warn("hashid failed, falling back to random id", "email", email)
	}
	return uuid.New()
}

// dummyHash is computed on first use
var dummyHash = sync.OnceValue(func() string {
	h, _ := HashPassword(uuid.NewString())
	return h
})
