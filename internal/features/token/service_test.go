package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	common_models "b24-sync/internal/common/models"

	"go.uber.org/zap"
)

type memSecretRepo struct {
	mu      sync.Mutex
	secrets map[string][]Secret
}

func newMemSecretRepo() *memSecretRepo {
	return &memSecretRepo{secrets: make(map[string][]Secret)}
}

func (r *memSecretRepo) Save(ctx context.Context, name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Mirrors the Mongo repo: one surviving version per name.
	r.secrets[name] = []Secret{{Name: name, Value: value, CreatedAt: time.Now()}}
	return nil
}

func (r *memSecretRepo) Latest(ctx context.Context, name string) (*Secret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.secrets[name]
	if len(versions) == 0 {
		return nil, nil
	}
	s := versions[len(versions)-1]
	return &s, nil
}

type nopAudit struct{}

func (nopAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}
func (nopAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func newTestTokenService(repo SecretRepository, oauthURL string) *TokenServiceImpl {
	return &TokenServiceImpl{
		clientID:     "app.client",
		clientSecret: "app.secret",
		oauthURL:     oauthURL,
		repo:         repo,
		auditService: nopAudit{},
		http:         &http.Client{Timeout: 5 * time.Second},
		log:          zap.NewNop(),
	}
}

func TestRefreshStoresNewPair(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = r.PostForm
		w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`))
	}))
	defer srv.Close()

	repo := newMemSecretRepo()
	repo.Save(context.Background(), SecretAccessToken, "old-access")
	repo.Save(context.Background(), SecretRefreshToken, "old-refresh")

	svc := newTestTokenService(repo, srv.URL)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if form.Get("grant_type") != "refresh_token" {
		t.Errorf("grant_type = %q", form.Get("grant_type"))
	}
	if form.Get("refresh_token") != "old-refresh" {
		t.Errorf("refresh_token = %q, want old-refresh", form.Get("refresh_token"))
	}

	access, _ := repo.Latest(context.Background(), SecretAccessToken)
	if access == nil || access.Value != "new-access" {
		t.Errorf("stored access token = %v", access)
	}
	refresh, _ := repo.Latest(context.Background(), SecretRefreshToken)
	if refresh == nil || refresh.Value != "new-refresh" {
		t.Errorf("stored refresh token = %v", refresh)
	}

	got, err := svc.AccessToken(context.Background())
	if err != nil || got != "new-access" {
		t.Errorf("AccessToken = %q, %v", got, err)
	}
}

func TestRefreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"new-access","expires_in":3600}`))
	}))
	defer srv.Close()

	repo := newMemSecretRepo()
	repo.Save(context.Background(), SecretRefreshToken, "old-refresh")

	svc := newTestTokenService(repo, srv.URL)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	refresh, _ := repo.Latest(context.Background(), SecretRefreshToken)
	if refresh == nil || refresh.Value != "old-refresh" {
		t.Errorf("refresh token should be preserved, got %v", refresh)
	}
}

func TestRefreshFailsOnOAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"expired"}`))
	}))
	defer srv.Close()

	repo := newMemSecretRepo()
	repo.Save(context.Background(), SecretRefreshToken, "stale")

	svc := newTestTokenService(repo, srv.URL)
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected an error for invalid_grant")
	}

	// The stale pair stays untouched on failure.
	if access, _ := repo.Latest(context.Background(), SecretAccessToken); access != nil {
		t.Errorf("access token written on failed refresh: %v", access)
	}
}

func TestRefreshRequiresSeededTokens(t *testing.T) {
	svc := newTestTokenService(newMemSecretRepo(), "http://unused")
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected an error without a stored refresh token")
	}
}
