package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dockmap/auth-service/internal/config"
	"github.com/dockmap/auth-service/internal/delivery"
	"github.com/dockmap/auth-service/internal/handler"
	"github.com/dockmap/auth-service/internal/repository"
	"github.com/dockmap/auth-service/internal/service"
	"github.com/dockmap/auth-service/internal/utils"
	"github.com/dockmap/auth-service/pkg/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra       Infrastructure
	config      *config.Config
	router      *gin.Engine
	server      *http.Server
	authService service.AuthService
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	logger := infra.Logger()
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry.Duration,
		cfg.JWT.RefreshTokenExpiry.Duration,
	)

	smsSender, err := delivery.NewSMSSender(cfg.SMS, cfg.Breaker, infra.Metrics(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure sms delivery: %w", err)
	}
	emailSender, err := delivery.NewEmailSender(cfg.Email, cfg.Breaker, infra.Metrics(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure email delivery: %w", err)
	}
	logger.Info("Delivery channels configured",
		zap.Strings("sms", smsSender.Channels()),
		zap.Strings("email", emailSender.Channels()),
	)

	codes := service.NewCodeEngine(repos.VerificationCode, service.CodeTTLs{
		SMS:           cfg.OTP.SMSTTL.Duration,
		Email:         cfg.OTP.EmailTTL.Duration,
		PasswordReset: cfg.OTP.ResetTTL.Duration,
	})

	authService := service.NewAuthService(service.AuthServiceParams{
		Users:   repos.User,
		Codes:   codes,
		Tokens:  jwtManager,
		Revoker: service.NewRedisSessionRevoker(infra.Redis()),
		Telegram: service.NewTelegramVerifier(service.TelegramConfig{
			BotToken:    cfg.Telegram.BotToken,
			BotID:       cfg.Telegram.BotID,
			Origin:      cfg.Telegram.Origin,
			RedirectURL: cfg.Telegram.RedirectURL,
			MaxAge:      cfg.Telegram.AuthMaxAge.Duration,
		}),
		VK: service.NewVKClient(service.VKConfig{
			ClientID:    cfg.VK.ClientID,
			RedirectURI: cfg.VK.RedirectURI,
			TokenURL:    cfg.VK.TokenURL,
			UserInfoURL: cfg.VK.UserInfoURL,
			Timeout:     cfg.VK.Timeout.Duration,
		}),
		SMS:        smsSender,
		Email:      emailSender,
		Events:     infra.Events(),
		Metrics:    infra.Metrics(),
		Logger:     logger,
		BCryptCost: cfg.Security.BCryptCost,
	})

	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(map[string]Pinger{
		"postgres": infra.Postgres(),
		"redis":    infra.Redis(),
	})

	authHandler := handler.NewAuthHandler(authService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	limit := handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.RouteAndIPKey)
	setupRoutes(router, authHandler, handler.AuthMiddleware(authService), limit)

	router.GET("/metrics", observability.PrometheusHandler(infra.MetricsHandler()))
	router.GET("/health", healthChecker.Handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:       infra,
		config:      cfg,
		router:      router,
		server:      srv,
		authService: authService,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// setupRoutes registers the auth API; requireAuth guards bearer routes and limit guards routes that send or check codes or credentials
func setupRoutes(router gin.IRouter, authHandler *handler.AuthHandler, requireAuth, limit gin.HandlerFunc) {
	auth := router.Group("/api/v1/auth")
	{
		sms := auth.Group("/sms")
		{
			sms.POST("/send", limit, authHandler.SendOTP)
			sms.POST("/verify", limit, authHandler.VerifyOTP)
		}

		email := auth.Group("/email")
		{
			email.POST("/register", limit, authHandler.RegisterEmail)
			email.POST("/login", limit, authHandler.LoginEmail)
			email.POST("/verify/send", requireAuth, authHandler.RequestEmailVerification)
			email.POST("/verify", limit, requireAuth, authHandler.ConfirmEmail)
		}

		telegram := auth.Group("/telegram")
		{
			telegram.GET("/oauth-link", authHandler.TelegramOAuthLink)
			telegram.GET("/callback", authHandler.TelegramCallback)
			telegram.POST("/callback", authHandler.TelegramCallback)
		}

		vk := auth.Group("/vk")
		{
			vk.GET("/callback", authHandler.VKCallback)
			vk.POST("/callback", authHandler.VKCallback)
		}

		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/refresh/validate", authHandler.ValidateRefresh)
		auth.POST("/logout", requireAuth, authHandler.Logout)
		auth.POST("/revoke-all", requireAuth, authHandler.RevokeAll)
		auth.GET("/me", requireAuth, authHandler.GetMe)
		auth.POST("/complete-registration", requireAuth, authHandler.CompleteRegistration)

		password := auth.Group("/password")
		{
			password.POST("/reset-request", limit, authHandler.RequestPasswordReset)
			password.POST("/verify-code", limit, authHandler.VerifyResetCode)
			password.POST("/reset", limit, authHandler.ResetPassword)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go runCodeSweeper(sweepCtx, a.authService, a.config.OTP.CleanupInterval.Duration, a.infra.Logger())

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}
	stopSweeper()

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// drain in-flight requests before closing their connections
	if err := a.server.Shutdown(ctx); err != nil {
		a.infra.Logger().Error("HTTP server shutdown failed", zap.Error(err))
		return errors.Join(err, a.infra.Shutdown(ctx))
	}

	if err := a.infra.Shutdown(ctx); err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
