package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"boxoffice/internal/inventory"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/shared/middleware"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

type Seeder struct {
	db  *database.DB
	cfg *config.Config
}

func main() {
	fmt.Println("🌱 Starting Boxoffice Database Seeder...")

	_ = godotenv.Load()
	cfg := config.Load()

	// InitDB also applies migrations
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, cfg: cfg}

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

	fmt.Println("\n🔑 Development tokens (24h):")
	if err := seeder.PrintDevTokens(); err != nil {
		log.Fatalf("Failed to sign development tokens: %v", err)
	}

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all booking tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"audit_log",
		"payment_intents",
		"tickets",
		"order_items",
		"ticket_orders",
		"reservation_seats",
		"seat_reservations",
		"show_seats",
		"seats",
		"shows",
	}

	return s.db.SQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// sectionLayout describes one block of seats and its price
type sectionLayout struct {
	name        string
	rows        []string
	seatsPerRow int
	seatType    inventory.SeatType
	priceCents  int64
}

// venueLayout is a venue and the shows scheduled in it
type venueLayout struct {
	name     string
	sections []sectionLayout
	shows    []showData
}

type showData struct {
	title       string
	daysFromNow int
	status      inventory.ShowStatus
	priceFactor int64 // percent of the section price
}

// SeedAll seeds venues, their seats and the shows that sell them
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	venues := []venueLayout{
		{
			name: "Small Theater",
			sections: []sectionLayout{
				{"Premium", []string{"A", "B"}, 13, inventory.SeatTypePremium, 7500},
				{"Standard", []string{"C", "D", "E"}, 13, inventory.SeatTypeStandard, 4500},
				{"Accessible", []string{"F"}, 6, inventory.SeatTypeAccessible, 4500},
			},
			shows: []showData{
				{"Hamlet - Opening Night", 14, inventory.ShowStatusOnSale, 120},
				{"Hamlet", 15, inventory.ShowStatusOnSale, 100},
				{"Hamlet - Matinee", 16, inventory.ShowStatusScheduled, 80},
			},
		},
		{
			name: "Concert Hall",
			sections: []sectionLayout{
				{"Orchestra", []string{"A", "B", "C", "D"}, 20, inventory.SeatTypePremium, 12000},
				{"Balcony", []string{"E", "F", "G"}, 24, inventory.SeatTypeStandard, 6000},
				{"Accessible", []string{"H"}, 8, inventory.SeatTypeAccessible, 6000},
			},
			shows: []showData{
				{"Symphony No. 9", 30, inventory.ShowStatusOnSale, 100},
				{"Jazz Night", 45, inventory.ShowStatusOnSale, 75},
			},
		},
	}

	for _, venue := range venues {
		seats, err := s.seedVenueSeats(ctx, venue)
		if err != nil {
			return fmt.Errorf("failed to seed venue %s: %w", venue.name, err)
		}

		for _, data := range venue.shows {
			if err := s.seedShow(ctx, venue.name, seats, data); err != nil {
				return fmt.Errorf("failed to seed show %s: %w", data.title, err)
			}
		}
	}

	// Clear Redis cache to ensure fresh seat maps
	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}

	return nil
}

// seededSeat pairs a physical seat with the base price of its section
type seededSeat struct {
	seat       inventory.Seat
	priceCents int64
}

func (s *Seeder) seedVenueSeats(ctx context.Context, venue venueLayout) ([]seededSeat, error) {
	fmt.Printf("  🏟️ Seeding venue: %s\n", venue.name)

	var seats []seededSeat
	for _, section := range venue.sections {
		for _, row := range section.rows {
			for number := 1; number <= section.seatsPerRow; number++ {
				seats = append(seats, seededSeat{
					seat: inventory.Seat{
						ID:       uuid.New(),
						Venue:    venue.name,
						Section:  section.name,
						Row:      row,
						Number:   number,
						SeatType: section.seatType,
					},
					priceCents: section.priceCents,
				})
			}
		}
	}

	rows := make([]inventory.Seat, len(seats))
	for i := range seats {
		rows[i] = seats[i].seat
	}
	if err := s.db.SQL.WithContext(ctx).CreateInBatches(rows, 200).Error; err != nil {
		return nil, fmt.Errorf("failed to create seats: %w", err)
	}

	fmt.Printf("    ✅ Created %d seats in %d sections\n", len(seats), len(venue.sections))
	return seats, nil
}

func (s *Seeder) seedShow(ctx context.Context, venue string, seats []seededSeat, data showData) error {
	show := inventory.Show{
		ID:       uuid.New(),
		Title:    data.title,
		Venue:    venue,
		StartsAt: time.Now().UTC().AddDate(0, 0, data.daysFromNow).Truncate(time.Hour),
		Status:   data.status,
	}
	if err := s.db.SQL.WithContext(ctx).Create(&show).Error; err != nil {
		return fmt.Errorf("failed to create show: %w", err)
	}

	showSeats := make([]inventory.ShowSeat, len(seats))
	for i, seat := range seats {
		showSeats[i] = inventory.ShowSeat{
			ID:         uuid.New(),
			ShowID:     show.ID,
			SeatID:     seat.seat.ID,
			Status:     inventory.SeatStatusAvailable,
			PriceCents: seat.priceCents * data.priceFactor / 100,
		}
	}
	if err := s.db.SQL.WithContext(ctx).Omit("Seat").CreateInBatches(showSeats, 200).Error; err != nil {
		return fmt.Errorf("failed to create show seats: %w", err)
	}

	fmt.Printf("    ✅ Created show: %s (%s, %d seats) id=%s\n", show.Title, show.Status, len(showSeats), show.ID)
	return nil
}

// PrintDevTokens signs access tokens for each role with the configured secret
func (s *Seeder) PrintDevTokens() error {
	roles := []string{middleware.RoleCustomer, middleware.RoleStaff, middleware.RoleAdmin}

	for _, role := range roles {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"type":    "access",
			"user_id": uuid.NewString(),
			"email":   fmt.Sprintf("%s@boxoffice.local", role),
			"role":    role,
			"exp":     time.Now().Add(24 * time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
		if err != nil {
			return err
		}
		fmt.Printf("  %-8s %s\n", role, signed)
	}
	return nil
}
