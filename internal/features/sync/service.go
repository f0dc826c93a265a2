package sync

import (
	"context"
	"fmt"
	"time"

	"b24-sync/internal/bitrix"
	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"
	"b24-sync/internal/features/audit"
	"b24-sync/internal/queue"

	"go.uber.org/zap"
)

// CRMClient is the slice of the Bitrix client the engine needs. The engine
// only ever mutates link/date fields on cases, never child records.
type CRMClient interface {
	GetItem(ctx context.Context, entityTypeID int, id string) (bitrix.Item, error)
	ListItems(ctx context.Context, entityTypeID int, filter map[string]string, selectFields []string) ([]bitrix.Item, error)
	UpdateItem(ctx context.Context, entityTypeID int, id string, fields map[string]interface{}) error
	GetContact(ctx context.Context, id string) (bitrix.Item, error)
	AddTimelineComment(ctx context.Context, entityTypeID int, itemID, comment string) error
}

// EventBroadcaster pushes finished runs to connected operator sessions.
type EventBroadcaster interface {
	Broadcast(v interface{})
}

type SyncService interface {
	ProcessEvent(ctx context.Context, event common_models.ChangeEvent) error
	ListRuns(ctx context.Context, limit int64) ([]SyncRun, error)
}

type SyncServiceImpl struct {
	parentTypeID int
	relations    []RelationConfig
	finalStages  map[string]struct{}
	contactMap   []ContactFieldMapping

	crm          CRMClient
	repo         SyncRunRepository
	auditService audit.AuditService
	broadcaster  EventBroadcaster
	log          *zap.Logger
}

func NewSyncService(
	cfg *config.Config,
	crm CRMClient,
	repo SyncRunRepository,
	auditService audit.AuditService,
	broadcaster EventBroadcaster,
	log *zap.Logger,
) SyncService {
	return &SyncServiceImpl{
		parentTypeID: cfg.SprawyTypeID,
		relations:    RelationsFromConfig(cfg),
		finalStages:  NewFinalStageSet(cfg.FinalStages),
		contactMap:   ContactMappingsFromConfig(cfg),
		crm:          crm,
		repo:         repo,
		auditService: auditService,
		broadcaster:  broadcaster,
		log:          log.Named("sync"),
	}
}

// ProcessEvent drives one ChangeEvent through resolve -> reconcile -> write
// -> notify. Processing is idempotent: replaying the same event against the
// same parent state ends in the skip path of the equality check.
func (s *SyncServiceImpl) ProcessEvent(ctx context.Context, event common_models.ChangeEvent) error {
	run := &SyncRun{
		RequestID: event.RequestID,
		Event:     event,
		Status:    "in_progress",
		StartTime: time.Now(),
	}
	_ = s.repo.Create(ctx, run)

	s.log.Info("Processing event",
		zap.String("request_id", event.RequestID),
		zap.String("relation", string(event.RelationKind)),
		zap.String("operation", string(event.Operation)),
		zap.String("child_id", event.ChildID),
		zap.String("parent_id", event.ParentID))

	err := s.routeEvent(ctx, event, run)

	run.EndTime = time.Now()
	switch {
	case err != nil:
		run.Status = "failed"
		run.Error = err.Error()
	case len(run.UpdatedParents) == 0:
		run.Status = "skipped"
	default:
		run.Status = "success"
	}
	_ = s.repo.Update(ctx, run)

	_ = s.auditService.LogChange(ctx, common_models.AuditActionSync, "sync", event.RequestID, map[string]common_models.Change{
		"status":  {New: run.Status},
		"updated": {New: run.UpdatedParents},
		"error":   {New: run.Error},
	})

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(run)
	}

	return err
}

func (s *SyncServiceImpl) ListRuns(ctx context.Context, limit int64) ([]SyncRun, error) {
	return s.repo.List(ctx, limit)
}

func (s *SyncServiceImpl) routeEvent(ctx context.Context, event common_models.ChangeEvent, run *SyncRun) error {
	switch event.RelationKind {
	case common_models.RelationContact:
		if event.Operation == common_models.OperationDeleted {
			// Nothing to mirror once the contact is gone.
			return nil
		}
		if event.ContactID == "" {
			return queue.Permanent(fmt.Errorf("contact event without contact_id"))
		}
		return s.syncContactToAllParents(ctx, event.ContactID, run)

	case common_models.RelationAll:
		if event.ParentID != "" {
			return s.fullResyncParent(ctx, event.ParentID, run)
		}
		if event.ContactID != "" {
			return s.syncAllForContact(ctx, event.ContactID, run)
		}
		return queue.Permanent(fmt.Errorf("full sync event without parent_id or contact_id"))

	default:
		rel, ok := s.relationByKind(event.RelationKind)
		if !ok {
			return queue.Permanent(fmt.Errorf("unknown relation kind %q", event.RelationKind))
		}
		if event.ChildID == "" {
			return queue.Permanent(fmt.Errorf("%s event without child_id", event.RelationKind))
		}
		return s.applyChildDelta(ctx, rel, event, run)
	}
}

func (s *SyncServiceImpl) relationByKind(kind common_models.RelationKind) (RelationConfig, bool) {
	for _, rel := range s.relations {
		if rel.Kind == kind {
			return rel, true
		}
	}
	return RelationConfig{}, false
}

// applyChildDelta reconciles one child change into every case that should
// carry (or stop carrying) the link.
func (s *SyncServiceImpl) applyChildDelta(ctx context.Context, rel RelationConfig, event common_models.ChangeEvent, run *SyncRun) error {
	include := false
	contactID := event.ContactID

	if event.Operation != common_models.OperationDeleted {
		child, err := s.crm.GetItem(ctx, rel.ChildTypeID, event.ChildID)
		switch {
		case bitrix.IsNotFound(err):
			// Child vanished between webhook and processing; fall through
			// to the removal path.
			s.log.Warn("Child no longer exists, removing links",
				zap.String("request_id", event.RequestID),
				zap.String("child_id", event.ChildID))
		case err != nil:
			return err
		default:
			include = ClassifyStage(child.StageID(), s.finalStages) == StageActive
			if contactID == "" {
				contactID = child.ContactID()
			}
		}
	}

	parents, err := s.resolveParents(ctx, event.ParentID, contactID, include, event.RequestID)
	if err != nil {
		return err
	}

	for _, parent := range parents {
		if err := s.reconcileParentDelta(ctx, rel, parent, event.ChildID, include, run); err != nil {
			return err
		}
	}
	return nil
}

// resolveParents returns the cases affected by an event: the explicitly
// referenced case, or every case belonging to the child's contact. On a
// removal with neither reference it falls back to every case, since delete
// webhooks carry only the item id.
func (s *SyncServiceImpl) resolveParents(ctx context.Context, parentID, contactID string, include bool, requestID string) ([]bitrix.Item, error) {
	if parentID != "" {
		parent, err := s.crm.GetItem(ctx, s.parentTypeID, parentID)
		if bitrix.IsNotFound(err) {
			return nil, queue.Permanent(fmt.Errorf("parent %s not found", parentID))
		}
		if err != nil {
			return nil, err
		}
		return []bitrix.Item{parent}, nil
	}

	if contactID == "" {
		if include {
			return nil, queue.Permanent(fmt.Errorf("event has no parent reference and no contact back-reference"))
		}
		s.log.Info("Removal without contact reference, sweeping all cases",
			zap.String("request_id", requestID))
		return s.crm.ListItems(ctx, s.parentTypeID, nil, s.parentSelect())
	}

	parents, err := s.crm.ListItems(ctx, s.parentTypeID, map[string]string{"contactId": contactID}, s.parentSelect())
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		s.log.Info("No cases for contact, nothing to sync",
			zap.String("request_id", requestID),
			zap.String("contact_id", contactID))
	}
	return parents, nil
}

func (s *SyncServiceImpl) parentSelect() []string {
	fields := []string{"id", "title", "stageId", "contactId"}
	for _, rel := range s.relations {
		fields = append(fields, rel.LinkField)
		if rel.HasDates() {
			fields = append(fields, rel.DateField)
		}
	}
	for _, m := range s.contactMap {
		fields = append(fields, m.CaseField)
	}
	return fields
}

// reconcileParentDelta applies the single-child reconciliation to one case
// and writes back only when the ordered link list or the date list changed.
func (s *SyncServiceImpl) reconcileParentDelta(ctx context.Context, rel RelationConfig, parent bitrix.Item, childID string, include bool, run *SyncRun) error {
	current := parent.StringList(rel.LinkField)
	newLinks := ReconcileLinks(current, childID, include)
	changed := !OrderedEqual(current, newLinks)

	var newDates []string
	if rel.HasDates() {
		dates, err := s.fetchChildDates(ctx, rel, newLinks)
		if err != nil {
			return err
		}
		newDates = AlignDates(newLinks, dates)
		if !OrderedEqual(parent.StringList(rel.DateField), newDates) {
			changed = true
		}
	}

	if !changed {
		s.log.Debug("Already in sync",
			zap.String("parent_id", parent.ID()),
			zap.String("relation", string(rel.Kind)))
		return nil
	}

	return s.writeRelation(ctx, rel, parent, newLinks, newDates, run)
}

// fetchChildDates looks every linked child's date up fresh from the store.
// A full recompute costs O(links) reads but can never leave dates
// misaligned with links. Missing children contribute the placeholder.
func (s *SyncServiceImpl) fetchChildDates(ctx context.Context, rel RelationConfig, links []string) (map[string]string, error) {
	dates := make(map[string]string, len(links))
	for _, id := range links {
		child, err := s.crm.GetItem(ctx, rel.ChildTypeID, id)
		if bitrix.IsNotFound(err) {
			dates[id] = ""
			continue
		}
		if err != nil {
			return nil, err
		}
		dates[id] = child.String(rel.ChildDateField)
	}
	return dates, nil
}

// writeRelation writes link and date fields in one update call so readers
// never observe link/date misalignment, then posts a best-effort audit note.
func (s *SyncServiceImpl) writeRelation(ctx context.Context, rel RelationConfig, parent bitrix.Item, links, dates []string, run *SyncRun) error {
	fields := map[string]interface{}{
		rel.LinkField: links,
	}
	if rel.HasDates() {
		fields[rel.DateField] = dates
	}

	if err := s.crm.UpdateItem(ctx, s.parentTypeID, parent.ID(), fields); err != nil {
		return err
	}

	s.log.Info("Updated case links",
		zap.String("parent_id", parent.ID()),
		zap.String("relation", string(rel.Kind)),
		zap.Strings("links", links))

	run.UpdatedParents = appendUnique(run.UpdatedParents, parent.ID())

	// Notification is not part of the correctness contract.
	note := fmt.Sprintf("Automatic sync: %s links updated (%d active)", rel.Kind, len(links))
	if err := s.crm.AddTimelineComment(ctx, s.parentTypeID, parent.ID(), note); err != nil {
		s.log.Warn("Timeline note failed",
			zap.String("parent_id", parent.ID()),
			zap.Error(err))
	}
	return nil
}

// fullResyncParent re-derives every relation field of one case from scratch.
// This is the daily-sync and case-event path; it also heals drift from
// missed webhooks and racing writers.
func (s *SyncServiceImpl) fullResyncParent(ctx context.Context, parentID string, run *SyncRun) error {
	parent, err := s.crm.GetItem(ctx, s.parentTypeID, parentID)
	if bitrix.IsNotFound(err) {
		return queue.Permanent(fmt.Errorf("parent %s not found", parentID))
	}
	if err != nil {
		return err
	}
	return s.resyncParentItem(ctx, parent, run)
}

func (s *SyncServiceImpl) syncAllForContact(ctx context.Context, contactID string, run *SyncRun) error {
	parents, err := s.crm.ListItems(ctx, s.parentTypeID, map[string]string{"contactId": contactID}, s.parentSelect())
	if err != nil {
		return err
	}
	for _, parent := range parents {
		if err := s.resyncParentItem(ctx, parent, run); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncServiceImpl) resyncParentItem(ctx context.Context, parent bitrix.Item, run *SyncRun) error {
	contactID := parent.ContactID()
	if contactID == "" {
		s.log.Warn("Case has no contact, skipping",
			zap.String("parent_id", parent.ID()))
		return nil
	}

	for _, rel := range s.relations {
		selectFields := []string{"id", "title", "stageId"}
		if rel.HasDates() {
			selectFields = append(selectFields, rel.ChildDateField)
		}
		children, err := s.crm.ListItems(ctx, rel.ChildTypeID, map[string]string{"contactId": contactID}, selectFields)
		if err != nil {
			return err
		}

		active := make([]string, 0, len(children))
		dates := make(map[string]string, len(children))
		for _, child := range children {
			if ClassifyStage(child.StageID(), s.finalStages) != StageActive {
				continue
			}
			id := child.ID()
			active = append(active, id)
			if rel.HasDates() {
				dates[id] = child.String(rel.ChildDateField)
			}
		}

		current := parent.StringList(rel.LinkField)
		newLinks := ReconcileFull(current, active)
		changed := !OrderedEqual(current, newLinks)

		var newDates []string
		if rel.HasDates() {
			newDates = AlignDates(newLinks, dates)
			if !OrderedEqual(parent.StringList(rel.DateField), newDates) {
				changed = true
			}
		}

		if !changed {
			continue
		}
		if err := s.writeRelation(ctx, rel, parent, newLinks, newDates, run); err != nil {
			return err
		}
	}

	return s.syncContactFieldsToParent(ctx, contactID, parent, run)
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
