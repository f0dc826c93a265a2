package dailysync

import (
	"context"
	"fmt"
	"time"

	"b24-sync/internal/bitrix"
	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"
	"b24-sync/internal/features/audit"
	sync_feature "b24-sync/internal/features/sync"
	"b24-sync/internal/queue"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CRMLister is the read-only slice of the Bitrix client the scheduler needs.
type CRMLister interface {
	ListItems(ctx context.Context, entityTypeID int, filter map[string]string, selectFields []string) ([]bitrix.Item, error)
}

type DailySyncService interface {
	Run(ctx context.Context, trigger string) (*DailyRun, error)
	ListRuns(ctx context.Context, limit int64) ([]DailyRun, error)
	InitializeScheduler() error
	StopScheduler() error
}

type DailySyncServiceImpl struct {
	parentTypeID int
	finalStages  map[string]struct{}
	schedule     string

	crm          CRMLister
	publisher    queue.Publisher
	repo         DailyRunRepository
	auditService audit.AuditService
	log          *zap.Logger

	scheduler *cron.Cron
}

func NewDailySyncService(
	cfg *config.Config,
	crm CRMLister,
	publisher queue.Publisher,
	repo DailyRunRepository,
	auditService audit.AuditService,
	log *zap.Logger,
) DailySyncService {
	return &DailySyncServiceImpl{
		parentTypeID: cfg.SprawyTypeID,
		finalStages:  sync_feature.NewFinalStageSet(cfg.FinalStages),
		schedule:     cfg.DailySyncCron,
		crm:          crm,
		publisher:    publisher,
		repo:         repo,
		auditService: auditService,
		log:          log.Named("dailysync"),
	}
}

// Run walks every case and enqueues a full resync for each active one. The
// heavy lifting happens on the queue consumers; this pass only lists and
// publishes, so a nightly run over thousands of cases stays cheap here.
func (s *DailySyncServiceImpl) Run(ctx context.Context, trigger string) (*DailyRun, error) {
	run := &DailyRun{
		RequestID: uuid.NewString(),
		Trigger:   trigger,
		Status:    "in_progress",
		StartTime: time.Now(),
	}
	_ = s.repo.Create(ctx, run)

	s.log.Info("Daily sync started",
		zap.String("request_id", run.RequestID),
		zap.String("trigger", trigger))

	err := s.enqueueActiveParents(ctx, run)

	run.EndTime = time.Now()
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	} else if run.Failures > 0 {
		run.Status = "partial"
	} else {
		run.Status = "success"
	}
	_ = s.repo.Update(ctx, run)

	_ = s.auditService.LogChange(ctx, common_models.AuditActionCron, "daily_sync", run.RequestID, map[string]common_models.Change{
		"status":   {New: run.Status},
		"total":    {New: run.TotalParents},
		"active":   {New: run.ActiveParents},
		"enqueued": {New: run.Enqueued},
	})

	s.log.Info("Daily sync finished",
		zap.String("request_id", run.RequestID),
		zap.String("status", run.Status),
		zap.Int("total", run.TotalParents),
		zap.Int("active", run.ActiveParents),
		zap.Int("enqueued", run.Enqueued),
		zap.Int("failures", run.Failures))

	return run, err
}

func (s *DailySyncServiceImpl) enqueueActiveParents(ctx context.Context, run *DailyRun) error {
	parents, err := s.crm.ListItems(ctx, s.parentTypeID, nil, []string{"id", "title", "stageId", "contactId"})
	if err != nil {
		return fmt.Errorf("listing cases: %w", err)
	}
	run.TotalParents = len(parents)

	for _, parent := range parents {
		if sync_feature.ClassifyStage(parent.StageID(), s.finalStages) != sync_feature.StageActive {
			continue
		}
		run.ActiveParents++

		event := common_models.ChangeEvent{
			RequestID:    run.RequestID,
			RelationKind: common_models.RelationAll,
			ParentID:     parent.ID(),
			ContactID:    parent.ContactID(),
			Operation:    common_models.OperationUpdated,
			BitrixEvent:  "DAILY_SYNC",
			Timestamp:    time.Now(),
		}
		// One failed publish must not abort the rest of the pass.
		if err := s.publisher.Publish(ctx, event); err != nil {
			run.Failures++
			s.log.Error("Failed to enqueue case",
				zap.String("request_id", run.RequestID),
				zap.String("parent_id", parent.ID()),
				zap.Error(err))
			continue
		}
		run.Enqueued++
	}
	return nil
}

func (s *DailySyncServiceImpl) ListRuns(ctx context.Context, limit int64) ([]DailyRun, error) {
	return s.repo.List(ctx, limit)
}

func (s *DailySyncServiceImpl) InitializeScheduler() error {
	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.Run(ctx, "cron"); err != nil {
			s.log.Error("Scheduled daily sync failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("bad daily sync schedule %q: %w", s.schedule, err)
	}
	s.scheduler.Start()
	s.log.Info("Daily sync scheduler started", zap.String("schedule", s.schedule))
	return nil
}

func (s *DailySyncServiceImpl) StopScheduler() error {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}
