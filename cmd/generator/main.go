package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"eventix/internal/config"
	"eventix/internal/database"
	"eventix/internal/logger"
	"eventix/internal/models"
	"eventix/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	adminEmail = flag.String("admin-email", "admin@eventhub.com", "Email of the admin user to create or promote")
	adminName  = flag.String("admin-name", "Admin User", "Name of the admin user")
	eventCount = flag.Int("events", 10, "Number of sample events to generate (0 = admin only)")
	dryRun     = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

var (
	titles    = []string{"Spring Jazz Night", "Go Systems Summit", "Pottery for Beginners", "City Runners Meetup", "Indie Rock Live", "Cloud Native Day", "Watercolor Workshop", "Startup Founders Meetup", "Symphony Under the Stars", "Data Engineering Forum"}
	locations = []string{"Main Hall", "Riverside Arena", "Downtown Conference Center", "Community Studio", "Central Park Stage"}
)

type Generator struct {
	users  *repository.UserRepository
	events *repository.EventRepository
	rnd    *rand.Rand
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting sample data generator...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)
	generator := &Generator{
		users:  repos.Users,
		events: repos.Events,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := generator.Run(ctx); err != nil {
		slog.Error("Generation failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Sample data generation completed successfully!")
}

func (g *Generator) Run(ctx context.Context) error {
	if *dryRun {
		slog.Info("[DRY RUN] Would ensure admin user", "email", *adminEmail)
		for i := 0; i < *eventCount; i++ {
			event := g.sampleEvent(i, "")
			slog.Info("[DRY RUN] Would create event", "title", event.Title, "capacity", event.Capacity, "price", event.Price.String())
		}
		return nil
	}

	admin, err := g.users.Ensure(ctx, *adminName, *adminEmail, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	slog.Info("Admin user ready", "id", admin.ID, "email", admin.Email)

	for i := 0; i < *eventCount; i++ {
		event := g.sampleEvent(i, admin.ID)
		if err := g.events.Create(ctx, event); err != nil {
			slog.Error("Failed to create event", "title", event.Title, "error", err)
			continue
		}
		slog.Info("Created event", "event_id", event.ID, "title", event.Title, "capacity", event.Capacity)
	}

	return nil
}

func (g *Generator) sampleEvent(i int, organizerID string) *models.Event {
	title := titles[i%len(titles)]
	category := models.EventCategories[g.rnd.Intn(len(models.EventCategories))]

	return &models.Event{
		Title:       title,
		Description: fmt.Sprintf("%s. A %s you will not want to miss.", title, category),
		Location:    locations[g.rnd.Intn(len(locations))],
		Category:    category,
		Date:        time.Now().AddDate(0, 0, 1+g.rnd.Intn(90)).Truncate(time.Hour),
		Price:       decimal.NewFromInt(int64(g.rnd.Intn(20)*5 + 10)),
		Capacity:    (g.rnd.Intn(10) + 1) * 50,
		OrganizerID: organizerID,
	}
}
