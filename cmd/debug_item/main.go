package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"b24-sync/internal/bitrix"
	"b24-sync/internal/config"
	"b24-sync/internal/database"
	"b24-sync/internal/features/audit"
	"b24-sync/internal/features/token"

	"go.uber.org/zap"
)

func main() {
	entityTypeID := flag.Int("type", 0, "entity type id (defaults to the case type)")
	id := flag.String("id", "", "item id")
	flag.Parse()

	if *id == "" {
		log.Fatal("usage: debug_item -id <item id> [-type <entity type id>]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if *entityTypeID == 0 {
		*entityTypeID = cfg.SprawyTypeID
	}

	ctx := context.Background()
	db, closeDB, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeDB()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	tokens := token.NewTokenService(cfg, token.NewSecretRepository(db), audit.NewAuditService(audit.NewAuditRepository(db)), logger)
	client := bitrix.NewClient(cfg, tokens, logger)

	item, err := client.GetItem(ctx, *entityTypeID, *id)
	if err != nil {
		log.Fatal(err)
	}

	out, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}
