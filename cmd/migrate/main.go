package main

import (
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/majstori/marketplace-chat/internal/config"
	"github.com/majstori/marketplace-chat/internal/migration"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.local.yaml", "config file path")
	directory := flag.Bool("directory", false, "also create the provider_profiles projection (local setups only)")
	backfill := flag.Bool("backfill", false, "create participant rows for conversations that have none")
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

	db, err := gorm.Open(mysql.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying DB: %v", err)
	}
	defer sqlDB.Close()

	start := time.Now()
	log.Printf("[migrate] Schema: %d chat tables (directory=%v)", len(migration.ChatModels()), *directory)
	if err := migration.Run(db, *directory); err != nil {
		log.Fatalf("[migrate] FAILED schema: %v", err)
	}
	log.Printf("[migrate] Schema completed in %v", time.Since(start))

	if *backfill {
		tStart := time.Now()
		n, err := migration.BackfillParticipants(db)
		if err != nil {
			log.Fatalf("[migrate:participants] FAILED: %v", err)
		}
		log.Printf("[migrate:participants] Inserted %d rows in %v", n, time.Since(tStart))
	}
}
