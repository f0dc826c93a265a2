package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operation describes what happened to a CRM record.
type Operation string

const (
	OperationCreated Operation = "created"
	OperationUpdated Operation = "updated"
	OperationDeleted Operation = "deleted"
)

// RelationKind names one link field on a case record (plus its optional
// paired date field). The special kinds "all" and "contact" route events
// through the full-resync and contact-field paths instead of a single
// child delta.
type RelationKind string

const (
	RelationPodstawy RelationKind = "podstawy"
	RelationPraca    RelationKind = "praca"
	RelationProcesy  RelationKind = "procesy"
	RelationAll      RelationKind = "all"
	RelationContact  RelationKind = "contact"
)

// ChangeEvent is the normalized queue message describing one create/update/
// delete affecting a case or one of its related records. Delivery is
// at-least-once, so processing must be idempotent.
type ChangeEvent struct {
	RequestID    string       `json:"request_id" bson:"request_id"`
	RelationKind RelationKind `json:"relation_kind" bson:"relation_kind"`
	ChildID      string       `json:"child_id,omitempty" bson:"child_id,omitempty"`
	ParentID     string       `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
	ContactID    string       `json:"contact_id,omitempty" bson:"contact_id,omitempty"`
	Operation    Operation    `json:"operation" bson:"operation"`
	BitrixEvent  string       `json:"bitrix_event,omitempty" bson:"bitrix_event,omitempty"`
	Timestamp    time.Time    `json:"timestamp" bson:"timestamp"`
}

// Audit Models
type AuditAction string

const (
	AuditActionSync    AuditAction = "SYNC"
	AuditActionCron    AuditAction = "CRON"
	AuditActionToken   AuditAction = "TOKEN"
	AuditActionWebhook AuditAction = "WEBHOOK"
)

type Change struct {
	Old interface{} `bson:"old,omitempty" json:"old,omitempty"`
	New interface{} `bson:"new,omitempty" json:"new,omitempty"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`
	RecordID  string             `bson:"record_id" json:"record_id"`
	ActorID   string             `bson:"actor_id" json:"actor_id"`
	Changes   map[string]Change  `bson:"changes" json:"changes"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Log is the shape of entries the async zap writer inserts into Mongo.
type Log struct {
	Message      string    `bson:"message" json:"message"`
	RequestID    string    `bson:"request_id,omitempty" json:"request_id,omitempty"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
