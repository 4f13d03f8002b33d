package main

import (
	"context"
	"flag"
	"log"

	"github.com/damoang/angple-forum/internal/config"
	"github.com/damoang/angple-forum/internal/migration"
	"github.com/damoang/angple-forum/internal/repository"
	"github.com/damoang/angple-forum/internal/service"
	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	seed := flag.Bool("seed", false, "insert the default categories and boards when empty")
	fix := flag.Bool("fix-pointers", false, "recompute message pointers and counters after migrating")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := gormlogger.Warn
	if *verbose {
		logLevel = gormlogger.Info
	}

	var dialector gorm.Dialector
	if cfg.Database.Driver == "sqlite" {
		dialector = sqlite.Open(cfg.Database.Path)
	} else {
		dialector = mysql.Open(cfg.Database.GetDSN())
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migrated %d tables", len(migration.Models()))

	if *seed {
		if err := migration.Seed(db); err != nil {
			log.Fatalf("Seed failed: %v", err)
		}
		log.Println("Seed complete")
	}

	if *fix {
		report, err := service.NewReconcileService(repository.NewStore(db)).FixMessagePointers(context.Background())
		if err != nil {
			log.Fatalf("Pointer fix failed: %v", err)
		}
		log.Printf("Pointer fix: %+v", report)
	}
}
