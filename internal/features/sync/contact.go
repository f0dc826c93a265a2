package sync

import (
	"context"
	"fmt"

	"b24-sync/internal/bitrix"
	"b24-sync/internal/queue"

	"go.uber.org/zap"
)

// syncContactToAllParents mirrors the mapped contact fields onto every case
// belonging to the contact. Triggered by contact webhooks.
func (s *SyncServiceImpl) syncContactToAllParents(ctx context.Context, contactID string, run *SyncRun) error {
	contact, err := s.crm.GetContact(ctx, contactID)
	if bitrix.IsNotFound(err) {
		return queue.Permanent(fmt.Errorf("contact %s not found", contactID))
	}
	if err != nil {
		return err
	}

	desired := s.desiredContactFields(contact)
	if len(desired) == 0 {
		return nil
	}

	parents, err := s.crm.ListItems(ctx, s.parentTypeID, map[string]string{"contactId": contactID}, s.parentSelect())
	if err != nil {
		return err
	}
	for _, parent := range parents {
		if err := s.applyContactFields(ctx, parent, desired, run); err != nil {
			return err
		}
	}
	return nil
}

// syncContactFieldsToParent is the full-resync variant for a single case. A
// missing contact is logged and skipped here because the resync must still
// finish the remaining cases.
func (s *SyncServiceImpl) syncContactFieldsToParent(ctx context.Context, contactID string, parent bitrix.Item, run *SyncRun) error {
	if len(s.contactMap) == 0 {
		return nil
	}
	contact, err := s.crm.GetContact(ctx, contactID)
	if bitrix.IsNotFound(err) {
		s.log.Warn("Contact not found, skipping field mirror",
			zap.String("contact_id", contactID),
			zap.String("parent_id", parent.ID()))
		return nil
	}
	if err != nil {
		return err
	}
	return s.applyContactFields(ctx, parent, s.desiredContactFields(contact), run)
}

func (s *SyncServiceImpl) desiredContactFields(contact bitrix.Item) map[string]string {
	desired := make(map[string]string, len(s.contactMap))
	for _, m := range s.contactMap {
		desired[m.CaseField] = contact.String(m.ContactField)
	}
	return desired
}

// applyContactFields writes only the fields whose mirrored value drifted.
func (s *SyncServiceImpl) applyContactFields(ctx context.Context, parent bitrix.Item, desired map[string]string, run *SyncRun) error {
	fields := make(map[string]interface{})
	for caseField, value := range desired {
		if parent.String(caseField) != value {
			fields[caseField] = value
		}
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.crm.UpdateItem(ctx, s.parentTypeID, parent.ID(), fields); err != nil {
		return err
	}
	s.log.Info("Mirrored contact fields",
		zap.String("parent_id", parent.ID()),
		zap.Int("fields", len(fields)))
	run.UpdatedParents = appendUnique(run.UpdatedParents, parent.ID())
	return nil
}
