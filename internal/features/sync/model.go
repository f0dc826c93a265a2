package sync

import (
	"time"

	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RelationConfig parameterizes the engine for one link field on a case.
// The three hand-wired per-relation workers collapse into this one record.
type RelationConfig struct {
	Kind           common_models.RelationKind
	ChildTypeID    int
	LinkField      string
	DateField      string // on the case; empty when the relation carries no dates
	ChildDateField string // on the child record
}

// HasDates reports whether this relation maintains a paired date list.
func (r RelationConfig) HasDates() bool {
	return r.DateField != ""
}

// RelationsFromConfig builds the relation table from environment config.
func RelationsFromConfig(cfg *config.Config) []RelationConfig {
	return []RelationConfig{
		{
			Kind:           common_models.RelationPodstawy,
			ChildTypeID:    cfg.PodstawyTypeID,
			LinkField:      cfg.FieldPodstawyLink,
			DateField:      cfg.FieldPodstawyDates,
			ChildDateField: cfg.FieldPodstawyDate,
		},
		{
			Kind:           common_models.RelationPraca,
			ChildTypeID:    cfg.PracaTypeID,
			LinkField:      cfg.FieldPracaLink,
			DateField:      cfg.FieldPracaDates,
			ChildDateField: cfg.FieldPracaDate,
		},
		{
			Kind:        common_models.RelationProcesy,
			ChildTypeID: cfg.ProcesyTypeID,
			LinkField:   cfg.FieldProcesyLink,
		},
	}
}

// ContactFieldMapping copies one contact field onto every linked case.
type ContactFieldMapping struct {
	Name         string
	ContactField string
	CaseField    string
}

// ContactMappingsFromConfig builds the contact->case field copy table.
func ContactMappingsFromConfig(cfg *config.Config) []ContactFieldMapping {
	return []ContactFieldMapping{
		{
			Name:         "passport number",
			ContactField: cfg.FieldContactPassport,
			CaseField:    cfg.FieldSprawyPassport,
		},
		{
			Name:         "passport valid until",
			ContactField: cfg.FieldContactPassportDate,
			CaseField:    cfg.FieldSprawyPassportDate,
		},
	}
}

// SyncRun is the persisted outcome of processing one ChangeEvent.
type SyncRun struct {
	ID             primitive.ObjectID        `json:"id" bson:"_id,omitempty"`
	RequestID      string                    `json:"request_id" bson:"request_id"`
	Event          common_models.ChangeEvent `json:"event" bson:"event"`
	Status         string                    `json:"status" bson:"status"` // "in_progress", "success", "skipped", "failed"
	UpdatedParents []string                  `json:"updated_parents,omitempty" bson:"updated_parents,omitempty"`
	Error          string                    `json:"error,omitempty" bson:"error,omitempty"`
	StartTime      time.Time                 `json:"start_time" bson:"start_time"`
	EndTime        time.Time                 `json:"end_time" bson:"end_time"`
}
