package dailysync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"b24-sync/internal/bitrix"
	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"

	"go.uber.org/zap"
)

type fakeLister struct {
	parents []bitrix.Item
	err     error
}

func (f *fakeLister) ListItems(ctx context.Context, entityTypeID int, filter map[string]string, selectFields []string) ([]bitrix.Item, error) {
	return f.parents, f.err
}

type fakePublisher struct {
	published []common_models.ChangeEvent
	failOn    map[string]bool
}

func (f *fakePublisher) Publish(ctx context.Context, event common_models.ChangeEvent) error {
	if f.failOn[event.ParentID] {
		return errors.New("queue unavailable")
	}
	f.published = append(f.published, event)
	return nil
}

type fakeRunRepo struct {
	runs []*DailyRun
}

func (r *fakeRunRepo) Create(ctx context.Context, run *DailyRun) error {
	r.runs = append(r.runs, run)
	return nil
}
func (r *fakeRunRepo) Update(ctx context.Context, run *DailyRun) error { return nil }
func (r *fakeRunRepo) List(ctx context.Context, limit int64) ([]DailyRun, error) {
	return nil, nil
}

type fakeAudit struct{}

func (fakeAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}
func (fakeAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		SprawyTypeID:  1106,
		FinalStages:   []string{"SUCCESS", "FAIL", "FAILURE", "LOSE", "APOLOGY"},
		DailySyncCron: "0 3 * * *",
	}
}

func makeParents(total, active int) []bitrix.Item {
	parents := make([]bitrix.Item, 0, total)
	for i := 0; i < total; i++ {
		stage := "DT1106_10:SUCCESS"
		if i < active {
			stage = "DT1106_10:UC_IN_PROGRESS"
		}
		parents = append(parents, bitrix.Item{
			"id":        fmt.Sprintf("%d", 100+i),
			"title":     fmt.Sprintf("Case %d", i),
			"stageId":   stage,
			"contactId": "7",
		})
	}
	return parents
}

func TestRunEnqueuesOnlyActiveCases(t *testing.T) {
	lister := &fakeLister{parents: makeParents(50, 11)}
	publisher := &fakePublisher{}
	repo := &fakeRunRepo{}

	svc := NewDailySyncService(testConfig(), lister, publisher, repo, fakeAudit{}, zap.NewNop())
	run, err := svc.Run(context.Background(), "cron")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.TotalParents != 50 {
		t.Errorf("total = %d, want 50", run.TotalParents)
	}
	if run.ActiveParents != 11 {
		t.Errorf("active = %d, want 11", run.ActiveParents)
	}
	if len(publisher.published) != 11 {
		t.Fatalf("published %d events, want 11", len(publisher.published))
	}
	if run.Status != "success" {
		t.Errorf("status = %q, want success", run.Status)
	}

	for _, event := range publisher.published {
		if event.RelationKind != common_models.RelationAll {
			t.Errorf("event kind = %v, want all", event.RelationKind)
		}
		if event.ParentID == "" {
			t.Error("event missing parent id")
		}
		if event.RequestID != run.RequestID {
			t.Error("events should carry the run's request id")
		}
	}
}

func TestRunIsolatesPublishFailures(t *testing.T) {
	lister := &fakeLister{parents: makeParents(5, 5)}
	publisher := &fakePublisher{failOn: map[string]bool{"102": true}}
	repo := &fakeRunRepo{}

	svc := NewDailySyncService(testConfig(), lister, publisher, repo, fakeAudit{}, zap.NewNop())
	run, err := svc.Run(context.Background(), "manual")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Enqueued != 4 {
		t.Errorf("enqueued = %d, want 4", run.Enqueued)
	}
	if run.Failures != 1 {
		t.Errorf("failures = %d, want 1", run.Failures)
	}
	if run.Status != "partial" {
		t.Errorf("status = %q, want partial", run.Status)
	}
}

func TestRunFailsWhenListingFails(t *testing.T) {
	lister := &fakeLister{err: errors.New("network down")}
	svc := NewDailySyncService(testConfig(), lister, &fakePublisher{}, &fakeRunRepo{}, fakeAudit{}, zap.NewNop())

	run, err := svc.Run(context.Background(), "cron")
	if err == nil {
		t.Fatal("expected an error when listing fails")
	}
	if run.Status != "failed" {
		t.Errorf("status = %q, want failed", run.Status)
	}
}
