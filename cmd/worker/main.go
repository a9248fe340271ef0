package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gradeflow/internal/assess"
	"gradeflow/internal/batch"
	"gradeflow/internal/config"
	"gradeflow/internal/database"
	"gradeflow/internal/pipeline"

	"github.com/joho/godotenv"
)

func statusLine(taskID uint, result batch.CheckResult) string {
	source := "remote"
	if result.FromCache {
		source = "cache"
	}
	return fmt.Sprintf("task %d batch status: %s (%s)", taskID, result.Status.Status, source)
}

func main() {
	var (
		envPath  string
		taskID   uint
		assessID uint
		check    bool
		download bool
	)
	flag.StringVar(&envPath, "env", "", "path to load env from")
	flag.UintVar(&taskID, "task", 0, "task id to operate on")
	flag.UintVar(&assessID, "assess", 0, "submission id to grade synchronously through the assessment service")
	flag.BoolVar(&check, "check", false, "check batch status instead of running the pipeline")
	flag.BoolVar(&download, "download", false, "download batch results instead of running the pipeline")
	flag.Parse()

	if envPath != "" {
		log.Printf("loading env from file %s", envPath)
		if err := godotenv.Load(envPath); err != nil {
			log.Fatalf("error loading .env file '%s': %v", envPath, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if taskID == 0 {
		log.Fatalf("a task id is required, pass -task")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	tasks := database.NewTaskStore(db)
	submissions := database.NewSubmissionStore(db)
	files := database.NewFileStore(db)
	images := database.NewImageStore(db)
	cache := database.NewStatusCacheStore(db)

	service := batch.NewOpenAIService(cfg.OpenAIAPIKey)
	assembler := batch.NewAssembler(files, submissions, batch.NewDigest(cfg.DigestAlgorithm), cfg.Model)
	tracker := batch.NewTracker(cache, submissions, service, cfg.BatchCheckInterval)
	grader := assess.NewClient(cfg.AssessURL)

	processor := pipeline.NewProcessor(cfg, tasks, submissions, files, images, assembler, tracker, service, grader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutdown signal received, cancelling...")
		cancel()
	}()

	switch {
	case check:
		result, err := processor.CheckStatus(ctx, taskID)
		if err != nil {
			log.Fatalf("Failed to check batch status: %v", err)
		}
		log.Print(statusLine(taskID, result))

	case download:
		if err := processor.DownloadResults(ctx, taskID); err != nil {
			log.Fatalf("Failed to download batch results: %v", err)
		}

	case assessID != 0:
		res, err := processor.AssessSubmission(ctx, taskID, assessID)
		if err != nil {
			log.Fatalf("Failed to assess submission %d: %v", assessID, err)
		}
		log.Printf("submission %d graded %.2f: %s", assessID, res.Grade, res.Feedback)

	default:
		if err := processor.ProcessTask(ctx, taskID); err != nil {
			log.Fatalf("Failed to process task %d: %v", taskID, err)
		}
	}
}
