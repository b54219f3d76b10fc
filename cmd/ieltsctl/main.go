package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"ieltsprep/internal/ai"
	"ieltsprep/internal/config"
	"ieltsprep/internal/database"
	"ieltsprep/internal/media"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/repository"
	"ieltsprep/internal/scheduler"
	"ieltsprep/internal/service"
)

// operator is the actor for content commands run from the shell
var operator = &models.User{Username: "ieltsctl", Role: models.RoleAdmin}

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	questionsCmd := flag.NewFlagSet("import-questions", flag.ExitOnError)
	adminCmd := flag.NewFlagSet("create-admin", flag.ExitOnError)
	jobCmd := flag.NewFlagSet("run-job", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: content_YYYYMMDD_HHMMSS.json)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Delete all tests, attempts and answers before import (WARNING: destructive)")

	// Question import flags
	questionsTest := questionsCmd.Int64("test", 0, "Test ID (required)")
	questionsFile := questionsCmd.String("file", "", "CSV, XLSX or JSON file (required)")

	// Admin flags
	adminEmail := adminCmd.String("email", "", "Email address (required)")
	adminUsername := adminCmd.String("username", "", "Username (required)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var parseErr error
	switch os.Args[1] {
	case "export":
		parseErr = exportCmd.Parse(os.Args[2:])
	case "import":
		parseErr = importCmd.Parse(os.Args[2:])
	case "import-questions":
		parseErr = questionsCmd.Parse(os.Args[2:])
	case "create-admin":
		parseErr = adminCmd.Parse(os.Args[2:])
	case "run-job":
		parseErr = jobCmd.Parse(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if parseErr != nil {
		log.Fatalf("Invalid arguments: %v", parseErr)
	}

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := db.SeedCatalog(context.Background()); err != nil {
		log.Fatalf("Failed to seed badges and levels: %v", err)
	}

	ctx := context.Background()
	contentRepo := repository.NewContentRepository(db)

	switch os.Args[1] {
	case "export":
		handleExport(ctx, service.NewBackupService(db, contentRepo), *exportOutput)

	case "import":
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, service.NewBackupService(db, contentRepo), *importInput, *importClear)

	case "import-questions":
		if *questionsTest <= 0 || *questionsFile == "" {
			fmt.Println("Error: -test and -file flags are required")
			questionsCmd.PrintDefaults()
			os.Exit(1)
		}
		content := service.NewContentService(db, contentRepo, nil)
		handleImportQuestions(ctx, service.NewImportService(content), *questionsTest, *questionsFile)

	case "create-admin":
		if *adminEmail == "" || *adminUsername == "" {
			fmt.Println("Error: -email and -username flags are required")
			adminCmd.PrintDefaults()
			os.Exit(1)
		}
		auth := service.NewAuthService(db, repository.NewUserRepository(db), service.NewEmailService(nil, cfg.AppBaseURL, cfg.Debug),
			service.AuthConfig{SessionDuration: cfg.SessionDuration, TokenSecret: cfg.JWTSecret})
		handleCreateAdmin(ctx, auth, *adminEmail, *adminUsername)

	case "run-job":
		if jobCmd.NArg() != 1 {
			fmt.Println("Error: run-job takes exactly one job name")
			os.Exit(1)
		}
		handleRunJob(ctx, cfg, db, jobCmd.Arg(0))
	}
}

func handleExport(ctx context.Context, backupService *service.BackupService, outputPath string) {
	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("content_%s.json", timestamp)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	log.Printf("Exporting content to: %s", outputPath)
	stats, err := backupService.Export(ctx, outputPath)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fileInfo, err := os.Stat(outputPath)
	if err != nil {
		log.Fatalf("Failed to stat export: %v", err)
	}
	log.Printf("Export complete! %d tests, %d questions, %.2f MB",
		stats.Tests, stats.Questions, float64(fileInfo.Size())/1024/1024)
}

func handleImport(ctx context.Context, backupService *service.BackupService, inputPath string, clearData bool) {
	// Check if file exists
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatalf("Input file does not exist: %s", inputPath)
	}

	if clearData && !confirm("WARNING: This will delete all tests, attempts and answers. Type 'yes' to confirm: ") {
		log.Println("Import cancelled")
		return
	}

	log.Printf("Importing content from: %s", inputPath)
	stats, err := backupService.Import(ctx, inputPath, clearData)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Printf("Import complete! %d tests, %d questions", stats.Tests, stats.Questions)
}

func handleImportQuestions(ctx context.Context, imports *service.ImportService, testID int64, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	result, err := imports.ImportQuestions(ctx, operator, testID, filepath.Base(path), f)
	if err != nil {
		log.Fatalf("Question import failed: %v", err)
	}
	log.Printf("Imported %d questions into test %d", result.Imported, result.TestID)
}

func handleCreateAdmin(ctx context.Context, auth *service.AuthService, email, username string) {
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	fmt.Print("Confirm password: ")
	confirmation, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	if string(password) != string(confirmation) {
		log.Fatal("Passwords do not match")
	}

	user, err := auth.CreateAdmin(ctx, service.RegisterInput{Username: username, Email: email, Password: string(password)})
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	log.Printf("Admin %s <%s> created with ID %d", user.Username, user.Email, user.ID)
}

func handleRunJob(ctx context.Context, cfg *config.Config, db *database.DB, name string) {
	reporter := reporting.New(reporting.Config{Token: cfg.RollbarToken, Environment: cfg.Environment, CodeVersion: cfg.CodeVersion})
	defer reporter.Close()

	store, err := media.NewStore(cfg.MediaDir, cfg.UploadMaxSize)
	if err != nil {
		log.Fatalf("Failed to open media directory: %v", err)
	}

	contentRepo := repository.NewContentRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	vocabularyRepo := repository.NewVocabularyRepository(db)

	auth := service.NewAuthService(db, repository.NewUserRepository(db), service.NewEmailService(nil, cfg.AppBaseURL, cfg.Debug),
		service.AuthConfig{SessionDuration: cfg.SessionDuration, TokenSecret: cfg.JWTSecret})
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db))
	gamification := service.NewGamificationService(db, repository.NewAchievementRepository(db), notifications, reporter)
	aiClient := ai.New(ai.Config{
		BaseURL:         cfg.AIBaseURL,
		APIKey:          cfg.AIAPIKey,
		Model:           cfg.AIModel,
		TranscribeModel: cfg.AITranscribeModel,
		Timeout:         cfg.AITimeout,
		MaxRetries:      cfg.AIMaxRetries,
	})
	grading := service.NewGradingService(db, answerRepo, attemptRepo, contentRepo, aiClient, store, notifications, reporter,
		service.GradingConfig{Workers: cfg.GradingWorkers})
	attempts := service.NewAttemptService(attemptRepo, answerRepo, contentRepo, store, gamification, notifications, grading, reporter)
	grading.SetCompletionHandler(attempts)

	jobs := scheduler.New(scheduler.Deps{
		Auth:       auth,
		Attempts:   attempts,
		Grading:    grading,
		Reminders:  notifications,
		Vocabulary: vocabularyRepo,
		Audio:      contentRepo,
		Media:      store,
		Reporter:   reporter,
	}, scheduler.Config{})

	if err := jobs.Run(ctx, name); err != nil {
		log.Fatalf("Job %s failed: %v (jobs: %s)", name, err, strings.Join(jobs.Names(), ", "))
	}
	if graded := grading.Drain(ctx); graded > 0 {
		log.Printf("Graded %d queued answers", graded)
	}
	log.Printf("Job %s finished", name)
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "yes"
}

func printUsage() {
	fmt.Println("IELTS Prep admin tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ieltsctl export [options]             Export tests and questions to a JSON file")
	fmt.Println("  ieltsctl import [options]             Import tests and questions from a JSON file")
	fmt.Println("  ieltsctl import-questions [options]   Add questions to a test from CSV, XLSX or JSON")
	fmt.Println("  ieltsctl create-admin [options]       Create a verified admin account")
	fmt.Println("  ieltsctl run-job <name>               Run one background job now")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: content_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Delete existing content first (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Question Import Options:")
	fmt.Println("  -test <id>        Test to add questions to (required)")
	fmt.Println("  -file <file>      questions.csv, questions.xlsx or questions.json (required)")
	fmt.Println()
	fmt.Println("Create Admin Options:")
	fmt.Println("  -email <address>  Email address (required)")
	fmt.Println("  -username <name>  Username (required); the password is prompted for")
	fmt.Println()
	fmt.Println("Jobs:")
	fmt.Println("  session-cleanup, attempt-timeout, grading-requeue, review-reminders, media-cleanup")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./ieltsprep.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
