package token

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SecretAccessToken  = "b24-access-token"
	SecretRefreshToken = "b24-refresh-token"
)

// Secret is one stored credential version. Save keeps only the newest
// version per name, mirroring a secret store with version cleanup.
type Secret struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Value     string             `json:"-" bson:"value"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

type TokenStatus struct {
	HasAccessToken  bool      `json:"has_access_token"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	LastRefresh     time.Time `json:"last_refresh,omitempty"`
}

type oauthResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
