package bitrix

import "context"

// TokenSource supplies the current OAuth access token for each API call.
// The client never refreshes tokens itself; the token feature owns the
// refresh schedule and this interface is the only coupling between them.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}
