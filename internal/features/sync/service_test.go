package sync

import (
	"context"
	"testing"

	"b24-sync/internal/bitrix"
	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"
	"b24-sync/internal/queue"

	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		SprawyTypeID:   1106,
		PodstawyTypeID: 1042,
		PracaTypeID:    1046,
		ProcesyTypeID:  1110,

		FieldPodstawyLink:  "ufCrm38_podstawy",
		FieldPodstawyDates: "ufCrm38_podstawyDates",
		FieldPracaLink:     "ufCrm38_praca",
		FieldPracaDates:    "ufCrm38_pracaDates",
		FieldProcesyLink:   "ufCrm38_procesy",

		FieldPodstawyDate: "ufCrm10_dataDoKiedy",
		FieldPracaDate:    "ufCrm12_dataWaznosci",

		FieldContactPassport:     "UF_CRM_PASSPORT",
		FieldSprawyPassport:      "ufCrm38_passport",
		FieldContactPassportDate: "UF_CRM_PASSPORT_DATE",
		FieldSprawyPassportDate:  "ufCrm38_passportDate",

		FinalStages: []string{"SUCCESS", "FAIL", "FAILURE", "LOSE", "APOLOGY"},
	}
}

type crmUpdate struct {
	entityTypeID int
	id           string
	fields       map[string]interface{}
}

// fakeCRM keeps records in memory and applies updates, so a replayed event
// sees the post-write state.
type fakeCRM struct {
	items    map[int]map[string]bitrix.Item
	order    map[int][]string
	contacts map[string]bitrix.Item
	updates  []crmUpdate
	comments []string
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		items:    make(map[int]map[string]bitrix.Item),
		order:    make(map[int][]string),
		contacts: make(map[string]bitrix.Item),
	}
}

func (f *fakeCRM) put(entityTypeID int, item bitrix.Item) {
	if f.items[entityTypeID] == nil {
		f.items[entityTypeID] = make(map[string]bitrix.Item)
	}
	id := item.ID()
	if _, exists := f.items[entityTypeID][id]; !exists {
		f.order[entityTypeID] = append(f.order[entityTypeID], id)
	}
	f.items[entityTypeID][id] = item
}

func (f *fakeCRM) GetItem(ctx context.Context, entityTypeID int, id string) (bitrix.Item, error) {
	item, ok := f.items[entityTypeID][id]
	if !ok {
		return nil, &bitrix.APIError{Method: "crm.item.get", Status: 400, Code: "NOT_FOUND"}
	}
	return item, nil
}

func (f *fakeCRM) ListItems(ctx context.Context, entityTypeID int, filter map[string]string, selectFields []string) ([]bitrix.Item, error) {
	var out []bitrix.Item
	for _, id := range f.order[entityTypeID] {
		item := f.items[entityTypeID][id]
		if contactID, ok := filter["contactId"]; ok && item.ContactID() != contactID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeCRM) UpdateItem(ctx context.Context, entityTypeID int, id string, fields map[string]interface{}) error {
	item, ok := f.items[entityTypeID][id]
	if !ok {
		return &bitrix.APIError{Method: "crm.item.update", Status: 400, Code: "NOT_FOUND"}
	}
	f.updates = append(f.updates, crmUpdate{entityTypeID: entityTypeID, id: id, fields: fields})
	for k, v := range fields {
		// Lists round-trip through the API as []interface{}.
		if list, ok := v.([]string); ok {
			converted := make([]interface{}, len(list))
			for i, s := range list {
				converted[i] = s
			}
			item[k] = converted
			continue
		}
		item[k] = v
	}
	return nil
}

func (f *fakeCRM) GetContact(ctx context.Context, id string) (bitrix.Item, error) {
	contact, ok := f.contacts[id]
	if !ok {
		return nil, &bitrix.APIError{Method: "crm.contact.get", Status: 400, Code: "NOT_FOUND"}
	}
	return contact, nil
}

func (f *fakeCRM) AddTimelineComment(ctx context.Context, entityTypeID int, itemID, comment string) error {
	f.comments = append(f.comments, comment)
	return nil
}

type fakeRunRepo struct {
	runs []*SyncRun
}

func (r *fakeRunRepo) Create(ctx context.Context, run *SyncRun) error {
	r.runs = append(r.runs, run)
	return nil
}
func (r *fakeRunRepo) Update(ctx context.Context, run *SyncRun) error { return nil }
func (r *fakeRunRepo) List(ctx context.Context, limit int64) ([]SyncRun, error) {
	out := make([]SyncRun, len(r.runs))
	for i, run := range r.runs {
		out[i] = *run
	}
	return out, nil
}

type fakeAudit struct{}

func (fakeAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}
func (fakeAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func newTestService(crm *fakeCRM) (SyncService, *fakeRunRepo) {
	repo := &fakeRunRepo{}
	svc := NewSyncService(testConfig(), crm, repo, fakeAudit{}, nil, zap.NewNop())
	return svc, repo
}

func seedParent(crm *fakeCRM, id, contactID string, links []interface{}, dates []interface{}) {
	crm.put(1106, bitrix.Item{
		"id":                    id,
		"title":                 "Case " + id,
		"stageId":               "DT1106_10:UC_IN_PROGRESS",
		"contactId":             contactID,
		"ufCrm38_podstawy":      links,
		"ufCrm38_podstawyDates": dates,
	})
}

func TestProcessEventAppendsActiveChild(t *testing.T) {
	crm := newFakeCRM()
	seedParent(crm, "500", "7", []interface{}{"26"}, []interface{}{"2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "26", "stageId": "DT1042_10:NEW", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "34", "stageId": "DT1042_10:NEW", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-05-01"})

	svc, _ := newTestService(crm)
	err := svc.ProcessEvent(context.Background(), common_models.ChangeEvent{
		RequestID:    "r1",
		RelationKind: common_models.RelationPodstawy,
		ChildID:      "34",
		Operation:    common_models.OperationCreated,
	})
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(crm.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(crm.updates))
	}
	up := crm.updates[0]
	if up.id != "500" {
		t.Errorf("updated wrong record: %s", up.id)
	}
	links, _ := up.fields["ufCrm38_podstawy"].([]string)
	dates, _ := up.fields["ufCrm38_podstawyDates"].([]string)
	if !OrderedEqual(links, []string{"26", "34"}) {
		t.Errorf("links = %v, want [26 34]", links)
	}
	if !OrderedEqual(dates, []string{"2026-01-01", "2026-05-01"}) {
		t.Errorf("dates = %v, want aligned pair", dates)
	}
	if len(crm.comments) != 1 {
		t.Errorf("expected a timeline note, got %d", len(crm.comments))
	}
}

func TestProcessEventRemovesFinishedChild(t *testing.T) {
	crm := newFakeCRM()
	seedParent(crm, "500", "7", []interface{}{"26", "34"}, []interface{}{"2026-01-01", "2026-05-01"})
	crm.put(1042, bitrix.Item{"id": "26", "stageId": "DT1042_10:NEW", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "34", "stageId": "DT1042_10:SUCCESS", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-05-01"})

	svc, _ := newTestService(crm)
	err := svc.ProcessEvent(context.Background(), common_models.ChangeEvent{
		RequestID:    "r2",
		RelationKind: common_models.RelationPodstawy,
		ChildID:      "34",
		Operation:    common_models.OperationUpdated,
	})
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(crm.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(crm.updates))
	}
	links, _ := crm.updates[0].fields["ufCrm38_podstawy"].([]string)
	dates, _ := crm.updates[0].fields["ufCrm38_podstawyDates"].([]string)
	if !OrderedEqual(links, []string{"26"}) {
		t.Errorf("links = %v, want [26]", links)
	}
	if !OrderedEqual(dates, []string{"2026-01-01"}) {
		t.Errorf("dates = %v, want [2026-01-01]", dates)
	}
}

func TestProcessEventIsIdempotent(t *testing.T) {
	crm := newFakeCRM()
	seedParent(crm, "500", "7", []interface{}{"26"}, []interface{}{"2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "26", "stageId": "DT1042_10:NEW", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "34", "stageId": "DT1042_10:NEW", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-05-01"})

	svc, repo := newTestService(crm)
	event := common_models.ChangeEvent{
		RequestID:    "r3",
		RelationKind: common_models.RelationPodstawy,
		ChildID:      "34",
		Operation:    common_models.OperationCreated,
	}

	if err := svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("first ProcessEvent: %v", err)
	}
	if err := svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("second ProcessEvent: %v", err)
	}

	if len(crm.updates) != 1 {
		t.Fatalf("replay caused extra writes: %d updates", len(crm.updates))
	}
	if len(repo.runs) != 2 {
		t.Fatalf("expected 2 run records, got %d", len(repo.runs))
	}
	if repo.runs[1].Status != "skipped" {
		t.Errorf("replayed run status = %q, want skipped", repo.runs[1].Status)
	}
}

func TestProcessEventIsIdempotentWithDatelessChild(t *testing.T) {
	crm := newFakeCRM()
	seedParent(crm, "500", "7", []interface{}{"26"}, []interface{}{"2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "26", "stageId": "DT1042_10:NEW", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "34", "stageId": "DT1042_10:NEW", "contactId": "7"})

	svc, repo := newTestService(crm)
	event := common_models.ChangeEvent{
		RequestID:    "r3b",
		RelationKind: common_models.RelationPodstawy,
		ChildID:      "34",
		Operation:    common_models.OperationCreated,
	}

	if err := svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("first ProcessEvent: %v", err)
	}

	// The stored date list now carries a "" placeholder for 34; replaying
	// must read it back unchanged and skip the write.
	dates := crm.items[1106]["500"].StringList("ufCrm38_podstawyDates")
	if !OrderedEqual(dates, []string{"2026-01-01", ""}) {
		t.Fatalf("stored dates = %v, want placeholder preserved", dates)
	}

	if err := svc.ProcessEvent(context.Background(), event); err != nil {
		t.Fatalf("second ProcessEvent: %v", err)
	}
	if len(crm.updates) != 1 {
		t.Fatalf("replay caused extra writes: %d updates", len(crm.updates))
	}
	if repo.runs[1].Status != "skipped" {
		t.Errorf("replayed run status = %q, want skipped", repo.runs[1].Status)
	}
}

func TestProcessEventDeleteWithoutContactSweepsAllCases(t *testing.T) {
	crm := newFakeCRM()
	seedParent(crm, "500", "7", []interface{}{"26", "34"}, []interface{}{"2026-01-01", "2026-05-01"})
	seedParent(crm, "501", "8", []interface{}{"34"}, []interface{}{"2026-05-01"})
	seedParent(crm, "502", "9", []interface{}{"26"}, []interface{}{"2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "26", "stageId": "DT1042_10:NEW", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-01-01"})

	svc, _ := newTestService(crm)
	err := svc.ProcessEvent(context.Background(), common_models.ChangeEvent{
		RequestID:    "r4b",
		RelationKind: common_models.RelationPodstawy,
		ChildID:      "34",
		Operation:    common_models.OperationDeleted,
	})
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(crm.updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(crm.updates))
	}
	for _, up := range crm.updates {
		if up.id == "502" {
			t.Errorf("case without the link was rewritten")
		}
	}
	if links := crm.items[1106]["500"].StringList("ufCrm38_podstawy"); !OrderedEqual(links, []string{"26"}) {
		t.Errorf("case 500 links = %v, want [26]", links)
	}
	if links := crm.items[1106]["501"].StringList("ufCrm38_podstawy"); !OrderedEqual(links, []string{}) {
		t.Errorf("case 501 links = %v, want empty", links)
	}
}

func TestProcessEventParentNotFoundIsPermanent(t *testing.T) {
	crm := newFakeCRM()
	crm.put(1042, bitrix.Item{"id": "34", "stageId": "DT1042_10:NEW", "contactId": "7"})

	svc, _ := newTestService(crm)
	err := svc.ProcessEvent(context.Background(), common_models.ChangeEvent{
		RequestID:    "r4",
		RelationKind: common_models.RelationPodstawy,
		ChildID:      "34",
		ParentID:     "999",
		Operation:    common_models.OperationUpdated,
	})
	if err == nil {
		t.Fatal("expected an error for a missing parent")
	}
	if !queue.IsPermanent(err) {
		t.Errorf("missing parent should not be retried: %v", err)
	}
}

func TestProcessEventContactMirrorsFields(t *testing.T) {
	crm := newFakeCRM()
	seedParent(crm, "500", "7", nil, nil)
	crm.items[1106]["500"]["ufCrm38_passport"] = "AB123"
	crm.contacts["7"] = bitrix.Item{
		"id":                   "7",
		"UF_CRM_PASSPORT":      "XY999",
		"UF_CRM_PASSPORT_DATE": "2030-01-01",
	}

	svc, _ := newTestService(crm)
	err := svc.ProcessEvent(context.Background(), common_models.ChangeEvent{
		RequestID:    "r5",
		RelationKind: common_models.RelationContact,
		ContactID:    "7",
		Operation:    common_models.OperationUpdated,
	})
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	if len(crm.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(crm.updates))
	}
	fields := crm.updates[0].fields
	if fields["ufCrm38_passport"] != "XY999" {
		t.Errorf("passport not mirrored: %v", fields["ufCrm38_passport"])
	}
	if fields["ufCrm38_passportDate"] != "2030-01-01" {
		t.Errorf("passport date not mirrored: %v", fields["ufCrm38_passportDate"])
	}
}

func TestFullResyncRebuildsRelations(t *testing.T) {
	crm := newFakeCRM()
	// Stale state: 26 finished but still linked, 34 active but missing.
	seedParent(crm, "500", "7", []interface{}{"26"}, []interface{}{"2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "26", "stageId": "DT1042_10:SUCCESS", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-01-01"})
	crm.put(1042, bitrix.Item{"id": "34", "stageId": "DT1042_10:NEW", "contactId": "7", "ufCrm10_dataDoKiedy": "2026-05-01"})
	crm.put(1110, bitrix.Item{"id": "80", "stageId": "DT1110_14:NEW", "contactId": "7"})
	crm.contacts["7"] = bitrix.Item{"id": "7"}

	svc, _ := newTestService(crm)
	err := svc.ProcessEvent(context.Background(), common_models.ChangeEvent{
		RequestID:    "r6",
		RelationKind: common_models.RelationAll,
		ParentID:     "500",
		Operation:    common_models.OperationUpdated,
	})
	if err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	var podstawy, procesy *crmUpdate
	for i := range crm.updates {
		up := &crm.updates[i]
		if _, ok := up.fields["ufCrm38_podstawy"]; ok {
			podstawy = up
		}
		if _, ok := up.fields["ufCrm38_procesy"]; ok {
			procesy = up
		}
	}

	if podstawy == nil {
		t.Fatal("podstawy links not rewritten")
	}
	links, _ := podstawy.fields["ufCrm38_podstawy"].([]string)
	dates, _ := podstawy.fields["ufCrm38_podstawyDates"].([]string)
	if !OrderedEqual(links, []string{"34"}) {
		t.Errorf("podstawy links = %v, want [34]", links)
	}
	if !OrderedEqual(dates, []string{"2026-05-01"}) {
		t.Errorf("podstawy dates = %v, want [2026-05-01]", dates)
	}

	if procesy == nil {
		t.Fatal("procesy links not rewritten")
	}
	if _, hasDates := procesy.fields["ufCrm38_procesyDates"]; hasDates {
		t.Error("procesy carries no date field")
	}
}
