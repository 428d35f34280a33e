package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"festival/internal/editions"
	"festival/internal/schedule"
	"festival/internal/shared/config"
	"festival/internal/shared/database"
	"festival/internal/tickets"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting festival database seeder...")

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")
}

// CleanDatabase truncates every festival table
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"ticket_types",
		"schedule_slots",
		"artists",
		"stages",
		"festival_editions",
	}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll seeds two consecutive editions. The earlier one carries a full
// lineup so it can serve as a copy template for the later one.
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	previous, current, err := s.SeedEditions(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed editions: %w", err)
	}

	stageIDs, err := s.SeedStages(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed stages: %w", err)
	}

	artistIDs, err := s.SeedArtists(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed artists: %w", err)
	}

	if err := s.SeedSlots(previous, stageIDs, artistIDs); err != nil {
		return fmt.Errorf("failed to seed slots: %w", err)
	}

	if err := s.SeedTicketTypes(current); err != nil {
		return fmt.Errorf("failed to seed ticket types: %w", err)
	}

	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}

	return nil
}

func (s *Seeder) SeedEditions(ctx context.Context) (*editions.Edition, *editions.Edition, error) {
	fmt.Println("  📅 Seeding editions...")

	repo := editions.NewRepository(s.db.PostgreSQL)
	previous := &editions.Edition{
		Year:      2024,
		Name:      "Festival 2024",
		StartDate: time.Date(2024, 7, 19, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC),
	}
	current := &editions.Edition{
		Year:      2025,
		Name:      "Festival 2025",
		StartDate: time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC),
	}

	for _, e := range []*editions.Edition{previous, current} {
		if err := repo.CreateEdition(ctx, e); err != nil {
			return nil, nil, err
		}
		fmt.Printf("    ✅ Created edition: %d (%s to %s)\n", e.Year,
			e.StartDate.Format(editions.DateLayout), e.EndDate.Format(editions.DateLayout))
	}
	return previous, current, nil
}

func (s *Seeder) SeedStages(ctx context.Context) (map[string]uuid.UUID, error) {
	fmt.Println("  🎪 Seeding stages...")

	repo := editions.NewRepository(s.db.PostgreSQL)
	stageData := []struct {
		name     string
		capacity int
	}{
		{"Main Stage", 12000},
		{"Forest", 3000},
		{"Club", 800},
	}

	ids := make(map[string]uuid.UUID, len(stageData))
	for _, d := range stageData {
		stage := &editions.Stage{Name: d.name, Capacity: d.capacity}
		if err := repo.CreateStage(ctx, stage); err != nil {
			return nil, err
		}
		ids[d.name] = stage.ID
		fmt.Printf("    ✅ Created stage: %s\n", stage.Name)
	}
	return ids, nil
}

func (s *Seeder) SeedArtists(ctx context.Context) (map[string]uuid.UUID, error) {
	fmt.Println("  🎤 Seeding artists...")

	repo := editions.NewRepository(s.db.PostgreSQL)
	artistData := []struct {
		name    string
		country string
	}{
		{"Les Nuits Blanches", "FR"},
		{"Northern Static", "NO"},
		{"Amber Coast", "PT"},
		{"Kintsugi Sound", "JP"},
		{"Velvet Lanterns", "BE"},
		{"Dune Radio", "MA"},
	}

	ids := make(map[string]uuid.UUID, len(artistData))
	for _, d := range artistData {
		artist := &editions.Artist{Name: d.name, Country: d.country}
		if err := repo.CreateArtist(ctx, artist); err != nil {
			return nil, err
		}
		ids[d.name] = artist.ID
		fmt.Printf("    ✅ Created artist: %s (%s)\n", artist.Name, artist.Country)
	}
	return ids, nil
}

func (s *Seeder) SeedSlots(edition *editions.Edition, stageIDs, artistIDs map[string]uuid.UUID) error {
	fmt.Println("  🕗 Seeding slots...")

	slotData := []struct {
		stage     string
		artist    string
		dayOffset int
		start     string
		end       string
		headliner bool
	}{
		{"Main Stage", "Amber Coast", 0, "19:00", "20:15", false},
		{"Main Stage", "Les Nuits Blanches", 0, "21:00", "22:30", true},
		{"Forest", "Kintsugi Sound", 0, "18:00", "19:00", false},
		{"Main Stage", "Northern Static", 1, "21:00", "22:30", true},
		{"Club", "Dune Radio", 1, "23:00", "23:59", false},
		{"Forest", "Velvet Lanterns", 2, "17:30", "18:30", false},
	}

	for _, d := range slotData {
		slot := &schedule.Slot{
			EditionID:   edition.ID,
			StageID:     stageIDs[d.stage],
			ArtistID:    artistIDs[d.artist],
			Day:         edition.StartDate.AddDate(0, 0, d.dayOffset),
			StartTime:   schedule.MustTimeOfDay(d.start),
			EndTime:     schedule.MustTimeOfDay(d.end),
			Status:      schedule.StatusConfirmed,
			IsHeadliner: d.headliner,
		}
		if err := s.db.PostgreSQL.Create(slot).Error; err != nil {
			return fmt.Errorf("failed to create slot for %s: %w", d.artist, err)
		}
		fmt.Printf("    ✅ Created slot: %s on %s %s-%s\n", d.artist, d.stage, d.start, d.end)
	}
	return nil
}

func (s *Seeder) SeedTicketTypes(edition *editions.Edition) error {
	fmt.Println("  🎟️  Seeding ticket types...")

	saleStart := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	saleEnd := edition.EndDate.Add(20 * time.Hour)
	saturday := edition.StartDate.AddDate(0, 0, 1)

	typeData := []struct {
		code     string
		name     string
		day      *time.Time
		price    float64
		phase    tickets.Phase
		quota    int
		channels tickets.ChannelMap
	}{
		{"PASS3J", "Pass 3 jours", nil, 129, tickets.PhaseEarly, 5000, tickets.ChannelMap{"online": 4000, "partner": 1000}},
		{"PASS1J-SAT", "Pass samedi", &saturday, 59, tickets.PhaseRegular, 2000, tickets.ChannelMap{"online": 1500}},
		{"VIP3J", "VIP 3 jours", nil, 289, tickets.PhaseRegular, 300, nil},
	}

	for _, d := range typeData {
		tt := &tickets.TicketType{
			EditionID:  edition.ID,
			Code:       d.code,
			Name:       d.name,
			Day:        d.day,
			Price:      d.price,
			Currency:   tickets.DefaultCurrency,
			VATRate:    20,
			Phase:      d.phase,
			QuotaTotal: d.quota,
			SaleStart:  &saleStart,
			SaleEnd:    &saleEnd,
			IsActive:   true,
		}
		tt.SetChannelQuotas(d.channels)
		tt.SetChannelReserved(tickets.ChannelMap{})
		if err := tt.Validate(edition); err != nil {
			return fmt.Errorf("invalid ticket type %s: %w", d.code, err)
		}
		if err := s.db.PostgreSQL.Create(tt).Error; err != nil {
			return fmt.Errorf("failed to create ticket type %s: %w", d.code, err)
		}
		fmt.Printf("    ✅ Created ticket type: %s (%s, quota %d)\n", tt.Code, tt.Phase, tt.QuotaTotal)
	}
	return nil
}
