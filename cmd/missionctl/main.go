package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lumora-edu/mentor-gateway/internal/mission"
)

// missionctl checks a mission instruction blob the way the gateway will, and
// optionally publishes the mission row so a database-backed catalog picks it
// up at the next gateway start.
func main() {
	id := flag.String("mission", "", "mission id (required)")
	kind := flag.String("kind", "instructed", "mission kind: instructed or standalone")
	instructionPath := flag.String("instruction", "", "path to the instruction blob (instructed missions)")
	publish := flag.Bool("publish", false, "insert the mission into the catalog database")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	flag.Parse()

	if *id == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -mission is required")
		os.Exit(1)
	}

	var missionKind mission.Kind
	switch *kind {
	case "instructed":
		missionKind = mission.Instructed
	case "standalone":
		missionKind = mission.Standalone
	default:
		log.Fatalf("invalid kind: %s (use 'instructed' or 'standalone')", *kind)
	}

	var instruction string
	if *instructionPath != "" {
		data, err := os.ReadFile(*instructionPath)
		if err != nil {
			log.Fatalf("failed to read instruction: %v", err)
		}
		instruction = string(data)
	}

	registry := mission.NewRegistry([]mission.Descriptor{{ID: *id, Kind: missionKind}})
	verdict := registry.Validate(*id, instruction)

	fmt.Println("=== Mission Check ===")
	fmt.Println()
	fmt.Printf("  Mission: %s\n", *id)
	fmt.Printf("  Kind:    %s\n", *kind)
	if missionKind == mission.Instructed {
		fmt.Printf("  Length:  %d chars (max %d)\n", len(instruction), mission.MaxInstructionChars)
		for _, marker := range mission.RequiredMarkers() {
			state := "missing"
			if strings.Contains(instruction, marker) {
				state = "present"
			}
			fmt.Printf("  Marker %-24q %s\n", marker, state)
		}
	}
	fmt.Println()
	if !verdict.Valid {
		fmt.Printf("  REJECTED: %s\n", verdict.Reason)
		os.Exit(1)
	}
	fmt.Println("  OK: the gateway will accept this mission")

	if !*publish {
		return
	}

	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		host := envOrDefault("DB_HOST", "localhost")
		port := envOrDefault("DB_PORT", "5432")
		user := envOrDefault("DB_USER", "mentor")
		pass := envOrDefault("DB_PASSWORD", "mentor-dev")
		name := envOrDefault("DB_NAME", "mentor")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `
		INSERT INTO missions (id, kind, status)
		VALUES ($1, $2, 'published')
		ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, status = 'published', updated_at = now()
	`, *id, string(missionKind))
	if err != nil {
		log.Fatalf("failed to publish mission: %v", err)
	}
	fmt.Printf("\n  published to catalog\n")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
