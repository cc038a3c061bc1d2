package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/slot-scheduling/internal/db"
)

// Seeds a handful of doctors with weekday working hours and a few off days,
// printing the doctor IDs so they can be fed to the API or the simulator.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	doctorCount := 20

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, doctorCount); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding schedules for %d doctors", count)

	durations := []int{15, 20, 30, 45, 60}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		doctorID := uuid.New()
		duration := durations[gofakeit.Number(0, len(durations)-1)]

		// Monday through Saturday; Sundays stay unscheduled.
		for dow := 1; dow <= 6; dow++ {
			if gofakeit.Number(0, 9) == 0 {
				continue // the occasional day off the weekly roster
			}

			startHour := gofakeit.Number(8, 10)
			endHour := gofakeit.Number(16, 19)

			_, err := tx.Exec(ctx, `
				INSERT INTO working_hour_rules (id, doctor_id, day_of_week, start_minute, end_minute, slot_duration_minutes, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, true, now(), now())
			`, uuid.New(), doctorID, dow, startHour*60, endHour*60, duration)
			if err != nil {
				return err
			}
		}

		// A couple of upcoming off days per doctor.
		for j := 0; j < gofakeit.Number(0, 3); j++ {
			date := time.Now().UTC().AddDate(0, 0, gofakeit.Number(1, 28))
			reason := gofakeit.RandomString([]string{"conference", "leave", "training", "public holiday"})

			_, err := tx.Exec(ctx, `
				INSERT INTO off_days (id, doctor_id, date, reason, created_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (doctor_id, date) DO NOTHING
			`, uuid.New(), doctorID, date, reason)
			if err != nil {
				return err
			}
		}

		log.Printf("doctor %d/%d: %s (slots of %d min)", i+1, count, doctorID, duration)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}
