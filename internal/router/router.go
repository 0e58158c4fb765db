package router

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"synagogue/internal/auth"
	"synagogue/internal/handler"
	"synagogue/internal/metrics"
	"synagogue/internal/model"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth      *handler.AuthHandler
	User      *handler.UserHandler
	Aliyah    *handler.AliyahHandler
	Synagogue *handler.SynagogueHandler
	Calendar  *handler.CalendarHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	log *zap.Logger,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	users auth.UserLookup,
	h Handlers,
) {
	e.Use(requestLogger(log))
	e.Use(requestMetrics())
	e.Use(middleware.Recover())

	e.Validator = NewValidator()

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Secured routes (require JWT authentication)
	secured := api.Group("", auth.JWTMiddleware(jwtService), auth.SessionMiddleware(tokenStore, users))

	secured.POST("/auth/logout", h.Auth.Logout)

	// User routes
	secured.GET("/users/me", h.User.Me)
	secured.GET("/users", h.User.ListUsers)
	secured.GET("/users/:id", h.User.GetUser)
	secured.PUT("/users/:id", h.User.UpdateUser)
	secured.PUT("/users/:id/role", h.User.ChangeRole)
	secured.DELETE("/users/:id", h.User.DeleteUser)

	// Aliyah ledger and payment routes
	secured.POST("/aliyot/addAliyah", h.Aliyah.CreateAliyah)
	secured.GET("/aliyot/:userId/aliyot", h.Aliyah.ListAliyot)
	secured.GET("/aliyot/:userId/reminders", h.Calendar.Reminders)
	secured.PUT("/aliyot/payment/:paymentId", h.Aliyah.PayInFull)
	secured.POST("/aliyot/payment/:paymentId/partial", h.Aliyah.PayPartial)
	secured.PUT("/aliyot/debt/:debtId", h.Aliyah.EditAliyah)
	secured.DELETE("/aliyot/debt/:debtId", h.Aliyah.DeleteAliyah)
	secured.GET("/aliyot/user/:userId/details", h.Aliyah.UserDetails)
	secured.PUT("/aliyot/user/:userId/payment", h.Aliyah.PayBulkFull)
	secured.POST("/aliyot/user/:userId/payment/partial", h.Aliyah.PayBulkPartial)

	// Synagogue routes
	secured.GET("/synagogues", h.Synagogue.ListSynagogues)
	secured.GET("/synagogues/:id", h.Synagogue.GetSynagogue)
	secured.POST("/synagogues", h.Synagogue.CreateSynagogue)
	secured.PUT("/synagogues/:id", h.Synagogue.UpdateSynagogue)
	secured.DELETE("/synagogues/:id", h.Synagogue.DeleteSynagogue)

	// Calendar routes
	secured.GET("/calendar/:synagogueId/week", h.Calendar.Week)
	secured.GET("/calendar/:synagogueId/zmanim", h.Calendar.Zmanim)
}

func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.RequestID != "" {
				fields = append(fields, zap.String("request_id", v.RequestID))
			}
			if v.Status >= http.StatusInternalServerError {
				log.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}

func requestMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			metrics.HTTPRequestDuration.
				WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

var (
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
	hhmmPattern  = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns a validator with the phone10, aliyatype and hhmm tags.
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("aliyatype", func(fl validator.FieldLevel) bool {
		return model.AliyaType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
