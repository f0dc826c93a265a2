package main

import (
	"context"
	"flag"
	"log"
	"time"

	"b24-sync/internal/bitrix"
	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"
	"b24-sync/internal/database"
	"b24-sync/internal/features/audit"
	sync_feature "b24-sync/internal/features/sync"
	"b24-sync/internal/features/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runs the full resync for one contact's cases from the command line,
// bypassing the queue.
func main() {
	contactID := flag.String("contact", "", "contact id")
	parentID := flag.String("parent", "", "case id (optional, syncs one case only)")
	flag.Parse()

	if *contactID == "" && *parentID == "" {
		log.Fatal("usage: sync_contact -contact <contact id> | -parent <case id>")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	db, closeDB, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeDB()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	auditService := audit.NewAuditService(audit.NewAuditRepository(db))
	tokens := token.NewTokenService(cfg, token.NewSecretRepository(db), auditService, logger)
	client := bitrix.NewClient(cfg, tokens, logger)

	service := sync_feature.NewSyncService(
		cfg,
		client,
		sync_feature.NewSyncRunRepository(db),
		auditService,
		nil,
		logger,
	)

	event := common_models.ChangeEvent{
		RequestID:    uuid.NewString(),
		RelationKind: common_models.RelationAll,
		ContactID:    *contactID,
		ParentID:     *parentID,
		Operation:    common_models.OperationUpdated,
		BitrixEvent:  "CLI",
		Timestamp:    time.Now(),
	}

	start := time.Now()
	if err := service.ProcessEvent(ctx, event); err != nil {
		log.Fatalf("sync failed after %s: %v", time.Since(start), err)
	}
	log.Printf("sync finished in %s (request_id=%s)", time.Since(start), event.RequestID)
}
