package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"ieltsprep/internal/ai"
	"ieltsprep/internal/config"
	"ieltsprep/internal/database"
	"ieltsprep/internal/handlers"
	"ieltsprep/internal/media"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/repository"
	"ieltsprep/internal/scheduler"
	"ieltsprep/internal/security"
	"ieltsprep/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	reporter := reporting.New(reporting.Config{
		Token:       cfg.RollbarToken,
		Environment: cfg.Environment,
		CodeVersion: cfg.CodeVersion,
	})
	defer reporter.Close()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	if err := db.SeedCatalog(context.Background()); err != nil {
		log.Fatalf("Failed to seed badges and levels: %v", err)
	}

	store, err := media.NewStore(cfg.MediaDir, cfg.UploadMaxSize)
	if err != nil {
		log.Fatalf("Failed to open media directory: %v", err)
	}

	sender, err := newEmailSender(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize email: %v", err)
	}

	aiClient := ai.New(ai.Config{
		BaseURL:         cfg.AIBaseURL,
		APIKey:          cfg.AIAPIKey,
		Model:           cfg.AIModel,
		TranscribeModel: cfg.AITranscribeModel,
		Timeout:         cfg.AITimeout,
		MaxRetries:      cfg.AIMaxRetries,
	})
	if !aiClient.Enabled() {
		log.Println("Warning: AI_API_KEY not set, essay and speaking answers will stay pending")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	contentRepo := repository.NewContentRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	vocabularyRepo := repository.NewVocabularyRepository(db)

	// Initialize services
	emailService := service.NewEmailService(sender, cfg.AppBaseURL, cfg.Debug)
	authService := service.NewAuthService(db, userRepo, emailService, service.AuthConfig{
		SessionDuration: cfg.SessionDuration,
		RequireVerified: cfg.RequireVerifiedMail,
		TokenSecret:     cfg.JWTSecret,
	})
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db))
	gamificationService := service.NewGamificationService(db, repository.NewAchievementRepository(db), notificationService, reporter)
	contentService := service.NewContentService(db, contentRepo, store)
	gradingService := service.NewGradingService(db, answerRepo, attemptRepo, contentRepo, aiClient, store, notificationService, reporter,
		service.GradingConfig{Workers: cfg.GradingWorkers})
	attemptService := service.NewAttemptService(attemptRepo, answerRepo, contentRepo, store, gamificationService, notificationService, gradingService, reporter)
	gradingService.SetCompletionHandler(attemptService)
	vocabularyService := service.NewVocabularyService(vocabularyRepo, gamificationService, reporter)
	importService := service.NewImportService(contentService)
	backupService := service.NewBackupService(db, contentRepo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gradingService.Start(ctx)

	oauthProviders := map[string]handlers.OAuthProvider{
		"google": {
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		},
	}

	limiter := security.NewRateLimiter(20, time.Minute)
	go limiter.RunPruner(ctx, 10*time.Minute)

	csrf := security.NewCSRFGenerator(cfg.CSRFSecret)

	// Initialize handlers
	router := &handlers.Router{
		Middleware:    handlers.NewMiddleware(authService, csrf, limiter, reporter),
		Auth:          handlers.NewAuthHandler(authService, csrf, oauthProviders, cfg.OAuthRedirectBaseURL, reporter),
		Attempts:      handlers.NewAttemptHandler(attemptService, gradingService, reporter),
		Content:       handlers.NewContentHandler(contentService, importService, backupService, reporter),
		Vocabulary:    handlers.NewVocabularyHandler(vocabularyService, reporter),
		Gamification:  handlers.NewGamificationHandler(gamificationService, reporter),
		Notifications: handlers.NewNotificationHandler(notificationService, reporter),
		Media:         handlers.NewMediaHandler(store, cfg.UploadMaxSize, reporter),
		Admin:         handlers.NewAdminHandler(authService, gradingService, reporter),
		Ping:          db.PingContext,
	}

	// Start background jobs
	jobs := scheduler.New(scheduler.Deps{
		Auth:       authService,
		Attempts:   attemptService,
		Grading:    gradingService,
		Reminders:  notificationService,
		Vocabulary: vocabularyRepo,
		Audio:      contentRepo,
		Media:      store,
		Reporter:   reporter,
	}, scheduler.Config{})
	jobs.Start()

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	jobs.Stop()
	gradingService.Wait()
	log.Println("Server stopped")
}

func newEmailSender(cfg *config.Config) (service.EmailSender, error) {
	switch cfg.EmailProvider {
	case "ses":
		return service.NewSESSender(context.Background(), cfg.SESRegion, cfg.EmailFrom, cfg.EmailFromName, cfg.Debug)
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return service.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName), nil
	default:
		log.Println("Email service disabled: messages will be logged")
		return service.LogSender{}, nil
	}
}
