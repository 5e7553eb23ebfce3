package main

import (
	"log"

	"creator-coach/config"
	"creator-coach/internal/database/model"

	"gorm.io/driver/mysql"
	"gorm.io/gen"
	"gorm.io/gorm"
)

// Generates typed query code for the documents and chunks tables.
func main() {
	if err := config.Init("config.yaml"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if config.Cfg.Database.Driver != config.DriverMySQL {
		log.Fatalf("query generation needs database.driver=%s, got %q", config.DriverMySQL, config.Cfg.Database.Driver)
	}

	db, err := gorm.Open(mysql.Open(config.Cfg.Dns), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	g := gen.NewGenerator(gen.Config{
		OutPath:        "internal/database/query",
		ModelPkgPath:   "internal/database/model",
		Mode:           gen.WithDefaultQuery | gen.WithQueryInterface,
		FieldNullable:  true,
		FieldCoverable: true,
	})

	g.UseDB(db)
	g.ApplyBasic(model.Document{}, model.Chunk{})

	g.Execute()
}
