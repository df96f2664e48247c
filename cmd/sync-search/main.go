package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"eventix/internal/config"
	"eventix/internal/database"
	"eventix/internal/logger"
	"eventix/internal/models"
	"eventix/internal/repository"
	"eventix/internal/search"
	"eventix/internal/service"
)

// Rebuilds the Elasticsearch event index from Postgres
func main() {
	var pageSize int
	flag.IntVar(&pageSize, "page-size", service.MaxPageSize, "Events read per page")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if !cfg.Elasticsearch.Enabled() {
		log.Fatal("ELASTICSEARCH_URL is not set")
	}

	ctx := context.Background()

	slog.Info("Connecting to database")
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	index, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Failed to connect to Elasticsearch: %v", err)
	}

	if err := syncEvents(ctx, repository.NewEventRepository(db), index, pageSize); err != nil {
		log.Fatalf("Search synchronization failed: %v", err)
	}
}

func syncEvents(ctx context.Context, events *repository.EventRepository, index *search.ElasticsearchClient, pageSize int) error {
	start := time.Now()
	filter := service.NormalizeFilter(models.EventFilter{Page: 1, Limit: pageSize})

	indexed, failed := 0, 0
	for {
		page, total, err := events.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to read events page %d: %w", filter.Page, err)
		}

		for i := range page {
			if err := index.IndexEvent(ctx, &page[i]); err != nil {
				slog.Error("Failed to index event", "event_id", page[i].ID, "error", err)
				failed++
				continue
			}
			indexed++
		}

		slog.Info("Indexed page", "page", filter.Page, "events", len(page), "total", total)

		if len(page) < filter.Limit || filter.Page*filter.Limit >= total {
			break
		}
		filter.Page++
	}

	slog.Info("Search synchronization completed",
		"indexed", indexed,
		"failed", failed,
		"duration", time.Since(start).String())

	if failed > 0 {
		return fmt.Errorf("%d events could not be indexed", failed)
	}
	return nil
}
