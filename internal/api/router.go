package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/instastick/storefront-auth/internal/api/handler"
	"github.com/instastick/storefront-auth/internal/api/middleware"
	"github.com/instastick/storefront-auth/internal/core/domain"
	"github.com/instastick/storefront-auth/internal/core/ports"
	_ "github.com/instastick/storefront-auth/internal/docs"
)

const bodyLimit = "10M"

// RateLimits holds the per-IP budget of each rule. A nil Limiter in Deps
// disables them all.
type RateLimits struct {
	API   middleware.Rule
	Auth  middleware.Rule
	OTP   middleware.Rule
	Email middleware.Rule
}

// DefaultRateLimits returns the production budgets.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		API:   middleware.Rule{Name: "api", Max: 100, Window: 15 * time.Minute, Message: "Too many requests from this IP. Please try again later."},
		Auth:  middleware.Rule{Name: "auth", Max: 5, Window: 15 * time.Minute, Message: "Too many authentication attempts. Please try again in 15 minutes."},
		OTP:   middleware.Rule{Name: "otp", Max: 5, Window: time.Hour, Message: "Too many OTP requests. Please try again in an hour."},
		Email: middleware.Rule{Name: "email", Max: 3, Window: time.Hour, Message: "Too many email requests. Please try again in an hour."},
	}
}

// Deps is everything the router needs to register routes.
type Deps struct {
	Auth        ports.AuthService
	Users       ports.UserService
	AuthOptions handler.AuthOptions
	Health      map[string]handler.Pinger
	Limiter     middleware.Limiter
	Limits      RateLimits
	// ClientIP decides the address rate limits count against. Nil uses the
	// peer address.
	ClientIP    echo.IPExtractor
	FrontendURL string
	Debug       bool
	Log         zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, d.Debug)
	e.IPExtractor = d.ClientIP
	if e.IPExtractor == nil {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         15552000,
	}))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{d.FrontendURL},
		AllowCredentials: true,
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(echomiddleware.Gzip())
	e.Use(echoprometheus.NewMiddleware("storefront_auth"))

	// --- Ops (no auth, no rate limit) ---
	health := handler.NewHealthHandler(d.Health)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	limit := func(rule middleware.Rule) echo.MiddlewareFunc {
		if d.Limiter == nil {
			return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
		}
		return middleware.RateLimit(d.Limiter, rule, d.Log)
	}
	protect := middleware.Protect(d.Auth)

	api := e.Group("/api", limit(d.Limits.API))
	v1 := api.Group("/v1")

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth, d.AuthOptions)
	auth := v1.Group("/auth")
	auth.POST("/signup", authHandler.Signup, limit(d.Limits.OTP))
	auth.POST("/verify-email", authHandler.VerifyEmail, limit(d.Limits.Auth))
	auth.POST("/resend-otp", authHandler.ResendOTP, limit(d.Limits.OTP))
	auth.POST("/login", authHandler.Login, limit(d.Limits.Auth))
	auth.POST("/logout", authHandler.Logout, middleware.Identify(d.Auth))
	auth.POST("/refresh-token", authHandler.RefreshToken)
	auth.GET("/check-auth", authHandler.CheckAuth)
	auth.POST("/forgot-password", authHandler.ForgotPassword, limit(d.Limits.Email))
	auth.PATCH("/reset-password/:token", authHandler.ResetPassword, limit(d.Limits.Auth))
	auth.PATCH("/update-password", authHandler.UpdatePassword, protect)

	// --- User routes (protected) ---
	userHandler := handler.NewUserHandler(d.Users, d.AuthOptions.Cookies)
	users := v1.Group("/users", protect)
	users.GET("/me", userHandler.GetMe)
	users.PATCH("/me", userHandler.UpdateMe)
	users.DELETE("/me", userHandler.DeleteMe)
	users.POST("/addresses", userHandler.AddAddress)
	users.PATCH("/addresses/:addressId", userHandler.UpdateAddress)
	users.DELETE("/addresses/:addressId", userHandler.DeleteAddress)

	adminOnly := middleware.RestrictTo(domain.RoleAdmin)
	users.GET("", userHandler.ListUsers, adminOnly)
	users.GET("/:id", userHandler.GetUser, adminOnly)
	users.DELETE("/:id", userHandler.DeleteUser, adminOnly)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
