package auth

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

// AuthControllerRoutes are the paths the controller mounts, relative
// to the router it is registered on.
type AuthControllerRoutes struct {
	Register   string
	Login      string
	Logout     string
	Session    string
	Survey     string
	CarePlan   string
	Profile    string
	AdminUsers string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Routes       *AuthControllerRoutes
	Auther       *Auther
	Phones       PhoneNormalizer
	Activity     ActivitySink
	LoginLimiter fiber.Handler
	Guard        ProtectedRouteConfig
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuther sets the facade, required
func WithAuther(a *Auther) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

// WithRepositoryManager enables the survey, care plan, profile and admin routes
func WithRepositoryManager(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

// WithPhoneNormalizer sets the phone normalizer used by profile updates
func WithPhoneNormalizer(p PhoneNormalizer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Phones = p
		return c
	}
}

// WithControllerLogger sets the logger
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

// WithControllerActivitySink forwards command events to sink
func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

// WithLoginLimiter sets the middleware that throttles login attempts
func WithLoginLimiter(h fiber.Handler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.LoginLimiter = h
		return c
	}
}

// WithGuardConfig sets the configuration of the protected route middleware
func WithGuardConfig(cfg ProtectedRouteConfig) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Guard = cfg
		return c
	}
}

// WithDebug dumps request payloads
func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:   defLogger{},
		Activity: noopActivitySink{},
		Routes: &AuthControllerRoutes{
			Register:   "/auth/register",
			Login:      "/auth/login",
			Logout:     "/auth/logout",
			Session:    "/auth/session",
			Survey:     "/survey",
			CarePlan:   "/care-plan",
			Profile:    "/profile",
			AdminUsers: "/admin/users",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Auther in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the JSON API on app, usually the /api group
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)
	requireSession := controller.Auther.ProtectedRoute(controller.Guard)

	guard := controller.Guard
	guard.Role = RoleAdmin
	requireAdmin := controller.Auther.ProtectedRoute(guard)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).Name("register.post")

	if controller.LoginLimiter != nil {
		app.Post(controller.Routes.Login, controller.LoginLimiter, controller.LoginPost).Name("sign-in.post")
	} else {
		app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")
	}

	app.Post(controller.Routes.Logout, controller.LogOut).Name("sign-out.post")
	app.Get(controller.Routes.Session, requireSession, controller.SessionShow).Name("session.get")

	if controller.Repo == nil {
		return controller
	}

	app.Post(controller.Routes.Survey, requireSession, controller.SurveyCreate).Name("survey.post")
	app.Get(controller.Routes.Survey, requireSession, controller.SurveyList).Name("survey.get")
	app.Post(controller.Routes.CarePlan, requireSession, controller.CarePlanCreate).Name("care-plan.post")
	app.Get(controller.Routes.CarePlan, requireSession, controller.CarePlanList).Name("care-plan.get")
	app.Patch(controller.Routes.Profile, requireSession, controller.ProfileUpdate).Name("profile.patch")
	app.Get(controller.Routes.AdminUsers, requireAdmin, controller.AdminUserList).Name("admin-users.get")

	return controller
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := ctx.BodyParser(payload); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}

	if err := payload.Validate(); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}

	if a.Debug {
		a.dump("AUTH LOGIN", fiber.Map{"email": payload.Email})
	}

	res, err := a.Auther.Login(ctx.UserContext(), ctx, payload.Email, payload.Password)
	if err != nil {
		return a.sendError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"user":     res.User.Sanitized(),
		"redirect": a.Auther.GetRedirect(ctx, "/dashboard"),
	})
}

func (a *AuthController) LogOut(ctx *fiber.Ctx) error {
	a.Auther.Logout(ctx.UserContext(), ctx)
	return ctx.JSON(fiber.Map{"success": true})
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	FirstName string `form:"firstName" json:"firstName"`
	LastName  string `form:"lastName" json:"lastName"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	UserType  string `form:"userType" json:"userType"`
	Phone     string `form:"phone" json:"phone"`
}

// Validate only checks presence, the provider owns the domain rules
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.UserType, validation.Required),
	)
}

func (a *AuthController) RegistrationCreate(ctx *fiber.Ctx) error {
	payload := new(RegistrationCreatePayload)
	if err := ctx.BodyParser(payload); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}

	if err := payload.Validate(); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}

	if a.Debug {
		a.dump("AUTH REGISTER", fiber.Map{
			"email":    payload.Email,
			"userType": payload.UserType,
		})
	}

	user, err := NewRegisterUserHandler(a.Auther).Execute(ctx.UserContext(), RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
		UserType:  payload.UserType,
		Phone:     payload.Phone,
	})
	if err != nil {
		return a.sendError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user.Sanitized(),
	})
}

func (a *AuthController) SessionShow(ctx *fiber.Ctx) error {
	claims, ok := GetFiberClaims(ctx)
	if !ok {
		return SendError(ctx, ErrUnauthenticated)
	}
	return ctx.JSON(fiber.Map{"user": claims.Profile()})
}

// SurveyCreatePayload is the survey submission payload
type SurveyCreatePayload struct {
	Answers map[string]any `json:"answers"`
}

// Validate will validate the payload
func (r SurveyCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Answers, validation.Required),
	)
}

func (a *AuthController) SurveyCreate(ctx *fiber.Ctx) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.sendError(ctx, err)
	}

	payload := new(SurveyCreatePayload)
	if err := ctx.BodyParser(payload); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}

	if err := payload.Validate(); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}

	if a.Debug {
		a.dump("SURVEY", payload)
	}

	survey, err := NewCompleteSurveyHandler(a.Repo).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity).
		Execute(ctx.UserContext(), CompleteSurveyMessage{
			UserID:  userID,
			Answers: payload.Answers,
		})
	if err != nil {
		return a.sendError(ctx, err)
	}

	user, err := a.Auther.Reissue(ctx.UserContext(), ctx, userID)
	if err != nil {
		return a.sendError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"survey":  survey,
		"user":    user.Sanitized(),
	})
}

func (a *AuthController) SurveyList(ctx *fiber.Ctx) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.sendError(ctx, err)
	}

	records, err := a.Repo.Surveys().ListByUser(ctx.UserContext(), userID)
	if err != nil {
		return a.sendError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"surveys": records})
}

// CarePlanCreatePayload is the care plan payload
type CarePlanCreatePayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Validate will validate the payload
func (r CarePlanCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
	)
}

func (a *AuthController) CarePlanCreate(ctx *fiber.Ctx) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.sendError(ctx, err)
	}

	payload := new(CarePlanCreatePayload)
	if err := ctx.BodyParser(payload); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}

	if err := payload.Validate(); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}

	plan, err := NewCreateCarePlanHandler(a.Repo).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity).
		Execute(ctx.UserContext(), CreateCarePlanMessage{
			UserID:      userID,
			Title:       payload.Title,
			Description: payload.Description,
		})
	if err != nil {
		return a.sendError(ctx, err)
	}

	user, err := a.Auther.Reissue(ctx.UserContext(), ctx, userID)
	if err != nil {
		return a.sendError(ctx, err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"carePlan": plan,
		"user":     user.Sanitized(),
	})
}

func (a *AuthController) CarePlanList(ctx *fiber.Ctx) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.sendError(ctx, err)
	}

	records, err := a.Repo.CarePlans().ListByUser(ctx.UserContext(), userID)
	if err != nil {
		return a.sendError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"carePlans": records})
}

func (a *AuthController) ProfileUpdate(ctx *fiber.Ctx) error {
	userID, err := a.sessionUserID(ctx)
	if err != nil {
		return a.sendError(ctx, err)
	}

	payload := new(UpdateProfileMessage)
	if err := ctx.BodyParser(payload); err != nil {
		return SendError(ctx, ErrMissingFields.Wrap(err))
	}
	payload.UserID = userID

	if payload.FirstName == nil && payload.LastName == nil && payload.Phone == nil {
		return SendError(ctx, ErrMissingFields)
	}

	if a.Phones == nil {
		return a.sendError(ctx, internalError(fmt.Errorf("phone normalizer not configured"), "failed to update profile"))
	}

	if _, err := NewUpdateProfileHandler(a.Repo, a.Phones).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity).
		Execute(ctx.UserContext(), *payload); err != nil {
		return a.sendError(ctx, err)
	}

	user, err := a.Auther.Reissue(ctx.UserContext(), ctx, userID)
	if err != nil {
		return a.sendError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"user": user.Sanitized()})
}

func (a *AuthController) AdminUserList(ctx *fiber.Ctx) error {
	records, err := a.Repo.Users().List(ctx.UserContext())
	if err != nil {
		return a.sendError(ctx, err)
	}

	out := make([]UserPayload, 0, len(records))
	for _, u := range records {
		out = append(out, u.Sanitized())
	}

	return ctx.JSON(fiber.Map{"users": out})
}

func (a *AuthController) sessionUserID(ctx *fiber.Ctx) (uuid.UUID, error) {
	claims, ok := GetFiberClaims(ctx)
	if !ok {
		return uuid.Nil, ErrUnauthenticated
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, ErrUnauthenticated.Wrap(err)
	}
	return id, nil
}

func (a *AuthController) sendError(ctx *fiber.Ctx, err error) error {
	if KindOf(err) == KindInternal {
		a.Logger.Error("request failed", "path", ctx.Path(), "error", err)
	} else {
		a.Logger.Debug("request rejected", "path", ctx.Path(), "kind", KindOf(err))
	}
	return SendError(ctx, err)
}

func (a *AuthController) dump(title string, payload any) {
	fmt.Println("======= " + strings.ToUpper(title) + " ======")
	fmt.Println(print.MaybePrettyJSON(payload))
	fmt.Println("=========================")
}
