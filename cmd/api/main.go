package main

import (
	"context"
	"log"

	"siteaudit-backend/internal/bootstrap"
	"siteaudit-backend/internal/shared/config"
	"siteaudit-backend/internal/shared/server"
	"siteaudit-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg, bootstrap.RoleAPI)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	if app.DB != nil {
		if err := db.RunMigrations(context.Background(), app.DB); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
	}

	addr := server.Addr(cfg.Port)
	log.Printf("Starting API server on %s", addr)

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
