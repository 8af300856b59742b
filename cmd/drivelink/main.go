package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drivelink/drivelink-api/internal/conversation"
	"github.com/drivelink/drivelink-api/internal/handler"
	"github.com/drivelink/drivelink-api/internal/messenger"
	"github.com/drivelink/drivelink-api/internal/middleware"
	"github.com/drivelink/drivelink-api/internal/repository"
	"github.com/drivelink/drivelink-api/internal/service"
	"github.com/drivelink/drivelink-api/pkg/cache"
	"github.com/drivelink/drivelink-api/pkg/config"
	"github.com/drivelink/drivelink-api/pkg/database"
	"github.com/drivelink/drivelink-api/pkg/logger"
	reqidmiddleware "github.com/drivelink/drivelink-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	pricingRepo := repository.NewPricingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	sysconfigRepo := repository.NewSystemConfigRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient, logr)

	twilioCfg, err := messenger.ResolveCredentials(ctx, sysconfigRepo, cfg.Twilio)
	if err != nil {
		logr.Sugar().Fatalw("failed to resolve twilio credentials", "error", err)
	}
	sender := messenger.NewTwilioMessenger(twilioCfg, logr)

	notifier := service.NewNotifier(sender, cfg.Reminders.Workers, logr)
	notifier.Start(ctx)
	defer notifier.Stop()

	slotSvc, err := service.NewSlotService(lessonRepo, cfg.Booking, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init slot service", "error", err)
	}
	metricsSvc := service.NewMetricsService()
	bookingSvc := service.NewBookingService(lessonRepo, studentRepo, pricingRepo, slotSvc, cfg.Booking.MaxLessonsPerDay, cfg.Booking.CancelLeadTime, metricsSvc, logr)
	identitySvc := service.NewIdentityResolver(userRepo, studentRepo, logr)
	matchingSvc := service.NewMatchingService(userRepo, logr)
	statsSvc := service.NewStatsService(studentRepo, userRepo, lessonRepo)
	tokenSvc := service.NewTokenService(cfg.Auth)

	sessions := conversation.NewSessionManager(sessionRepo, cfg.WhatsApp, slotSvc.Location(), logr)
	registrationFlow := conversation.NewRegistrationFlow(sessionRepo, studentRepo, matchingSvc, notifier, cfg.WhatsApp.RegistrationTTL, nil, logr)
	studentFlow := conversation.NewStudentFlow(bookingSvc, slotSvc, studentRepo, userRepo, lessonRepo, paymentRepo, notifier, nil, logr)
	instructorFlow := conversation.NewInstructorFlow(bookingSvc, lessonRepo, studentRepo, vehicleRepo, notifier, slotSvc.Location(), logr)
	adminFlow := conversation.NewAdminFlow(statsSvc, studentRepo, userRepo, lessonRepo, slotSvc.Location())
	convRouter := conversation.NewRouter(identitySvc, sessions, registrationFlow, studentFlow, instructorFlow, adminFlow, sessionRepo, cfg.WhatsApp.DedupTTL, metricsSvc, logr)

	if cfg.Reminders.Enabled {
		reminderSvc := service.NewReminderService(lessonRepo, studentRepo, sessionRepo, notifier, cfg.Reminders, slotSvc.Location(), metricsSvc, logr)
		go reminderSvc.Run(ctx)
	}

	webhookHandler := handler.NewWebhookHandler(convRouter, sender, logr)
	messageHandler := handler.NewMessageHandler(notifier)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))

	r.POST("/whatsapp/webhook", webhookHandler.Receive)
	r.POST("/whatsapp/status", webhookHandler.Status)
	r.POST("/whatsapp/send", middleware.JWT(tokenSvc), messageHandler.Send)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
