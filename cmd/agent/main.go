package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/picvault/picvault/internal/agent"
	"github.com/picvault/picvault/internal/config"
	"github.com/picvault/picvault/internal/domain"
	"github.com/picvault/picvault/internal/logger"
)

func main() {
	appLogger := logger.New(logger.LoadFromEnv())
	logger.SetDefault(appLogger)
	defer logger.Sync()

	pageURL := flag.String("page", "", "Page URL the images belong to")
	deleteMode := flag.Bool("delete", false, "Delete the given images by content hash instead of capturing")
	workers := flag.Int("workers", 0, "Concurrent capture workers, 0 uses the configured default")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	imageURLs := flag.Args()
	if *pageURL == "" || len(imageURLs) == 0 {
		appLogger.Fatal("Usage: agent -page <page-url> [-delete] <image-url>...")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	poolSize := cfg.Agent.Workers
	if *workers > 0 {
		poolSize = *workers
	}
	if poolSize <= 0 {
		poolSize = 4
	}

	clientCfg := &agent.ClientConfig{
		RelayURL:   cfg.Agent.RelayURL,
		APIBaseURL: cfg.Agent.APIBaseURL,
		APIKey:     cfg.Agent.APIKey,
		Timeout:    cfg.Agent.FetchTimeout,
	}
	a := agent.New(
		agent.NewHTTPRelayClient(clientCfg),
		agent.NewHTTPMetadataClient(clientCfg),
		&agent.Config{FetchTimeout: cfg.Agent.FetchTimeout},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	sess, err := a.OpenSession(ctx, *pageURL)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open session")
	}
	appLogger.WithFields(logger.Fields{
		logger.FieldPageURL: sess.PageURL(),
		"collected":         sess.Len(),
		"images":            len(imageURLs),
		"workers":           poolSize,
	}).Info("Session opened")

	if *deleteMode {
		runDelete(ctx, a, sess, imageURLs)
		return
	}
	runCapture(ctx, a, sess, imageURLs, poolSize)
}

// runCapture fans the image URLs out over a fixed worker pool.
func runCapture(ctx context.Context, a *agent.Agent, sess *agent.Session, imageURLs []string, poolSize int) {
	var captured, already, failed atomic.Int64

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for imageURL := range jobs {
				result, err := a.Capture(ctx, sess, imageURL)
				switch {
				case err != nil:
					failed.Add(1)
					logger.GetDefault().WithError(err).WithField("image_url", imageURL).Error("Capture failed")
				case result.Status == agent.StatusAlreadyCollected:
					already.Add(1)
				default:
					captured.Add(1)
				}
			}
		}()
	}

	for _, imageURL := range imageURLs {
		select {
		case jobs <- imageURL:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	logger.GetDefault().WithFields(logger.Fields{
		"captured":          captured.Load(),
		"already_collected": already.Load(),
		"failed":            failed.Load(),
	}).Info("Capture run completed")
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

// runDelete removes records sequentially; deletes are rare and cheap.
func runDelete(ctx context.Context, a *agent.Agent, sess *agent.Session, imageURLs []string) {
	var deleted, missing, failed int64
	for _, imageURL := range imageURLs {
		if ctx.Err() != nil {
			break
		}
		n, err := a.Delete(ctx, sess, imageURL)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			missing++
			logger.GetDefault().WithField("image_url", imageURL).Warn("Image not in collected set")
		case err != nil:
			failed++
			logger.GetDefault().WithError(err).WithField("image_url", imageURL).Error("Delete failed")
		default:
			deleted += n
		}
	}

	logger.GetDefault().WithFields(logger.Fields{
		"deleted": deleted,
		"missing": missing,
		"failed":  failed,
	}).Info("Delete run completed")
	if failed > 0 {
		os.Exit(1)
	}
}
