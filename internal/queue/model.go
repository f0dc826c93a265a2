package queue

import (
	"time"

	common_models "b24-sync/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusPending  = "pending"
	StatusInflight = "inflight"
	StatusDead     = "dead"
)

// Message is one queued ChangeEvent. Delivery is at-least-once: a message
// stays invisible for the visibility window after dequeue and becomes
// deliverable again if the worker never acks it.
type Message struct {
	ID          primitive.ObjectID        `bson:"_id,omitempty" json:"id"`
	Event       common_models.ChangeEvent `bson:"event" json:"event"`
	Status      string                    `bson:"status" json:"status"`
	Attempts    int                       `bson:"attempts" json:"attempts"`
	AvailableAt time.Time                 `bson:"available_at" json:"available_at"`
	LastError   string                    `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt   time.Time                 `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time                 `bson:"updated_at" json:"updated_at"`
}
