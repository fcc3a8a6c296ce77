package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/yungbote/fractal-backend/internal/app"
	"github.com/yungbote/fractal-backend/internal/data/db"
	"github.com/yungbote/fractal-backend/internal/platform/envutil"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

func main() {
	var indexes bool
	var dropUnused bool
	flag.BoolVar(&indexes, "indexes", true, "create the cascade partial indexes after automigrate")
	flag.BoolVar(&dropUnused, "drop-unused", false, "drop tables no current model maps to")
	flag.Parse()

	logMode := envutil.GetEnv("LOG_MODE", "development", nil)
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := app.LoadConfig(log)

	pg, err := db.NewPostgresService(log, cfg.DatabaseURL)
	if err != nil {
		fmt.Printf("init postgres: %v\n", err)
		os.Exit(1)
	}
	theDB := pg.DB()

	log.Info("Running automigrate...")
	if err := db.AutoMigrateAll(theDB); err != nil {
		fmt.Printf("automigrate: %v\n", err)
		os.Exit(1)
	}

	if indexes {
		log.Info("Ensuring cascade indexes...")
		if err := db.EnsureCascadeIndexes(theDB); err != nil {
			fmt.Printf("cascade indexes: %v\n", err)
			os.Exit(1)
		}
	}

	if dropUnused {
		dropped, err := db.DropUnusedTables(theDB)
		for _, table := range dropped {
			fmt.Printf("dropped %s\n", table)
		}
		if err != nil {
			fmt.Printf("drop unused tables: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("migration complete")
}
