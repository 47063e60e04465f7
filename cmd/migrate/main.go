package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/config"
	"github.com/jafarshop/delifast/internal/repository/postgres"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command != "up" && command != "down" && command != "version" && command != "create-db" {
		fmt.Println("Usage: go run cmd/migrate/main.go [up|down|version|create-db]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if command == "create-db" {
		if err := createDatabase(cfg.Database); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	m, err := postgres.NewMigrator(db, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
		version, dirty, verr := m.Version()
		if verr == nil {
			fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
		}
		err = verr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", command, err)
		os.Exit(1)
	}

	fmt.Printf("Migration %s completed successfully!\n", command)
}

// createDatabase connects to the postgres maintenance database and creates the
// configured database when it does not exist yet
func createDatabase(dbCfg config.DatabaseConfig) error {
	maintenance := dbCfg
	maintenance.DBName = "postgres"

	db, err := sql.Open("postgres", maintenance.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to postgres database: %w", err)
	}
	defer db.Close()

	var exists bool
	err = db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbCfg.DBName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}

	if exists {
		fmt.Printf("Database '%s' already exists.\n", dbCfg.DBName)
		return nil
	}

	fmt.Printf("Database '%s' does not exist. Creating...\n", dbCfg.DBName)
	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE %q", dbCfg.DBName)); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	fmt.Printf("Database '%s' created successfully.\n", dbCfg.DBName)
	return nil
}
