package dailysync

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DailyRun records one pass over the full case list.
type DailyRun struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RequestID     string             `json:"request_id" bson:"request_id"`
	Trigger       string             `json:"trigger" bson:"trigger"`
	Status        string             `json:"status" bson:"status"`
	TotalParents  int                `json:"total_parents" bson:"total_parents"`
	ActiveParents int                `json:"active_parents" bson:"active_parents"`
	Enqueued      int                `json:"enqueued" bson:"enqueued"`
	Failures      int                `json:"failures" bson:"failures"`
	Error         string             `json:"error,omitempty" bson:"error,omitempty"`
	StartTime     time.Time          `json:"start_time" bson:"start_time"`
	EndTime       time.Time          `json:"end_time" bson:"end_time"`
}
