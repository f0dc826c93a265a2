package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	common_models "b24-sync/internal/common/models"
	"b24-sync/internal/config"
	"b24-sync/internal/features/audit"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultOAuthURL = "https://oauth.bitrix.info/oauth/token/"

type TokenService interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
	Seed(ctx context.Context, accessToken, refreshToken string) error
	Status(ctx context.Context) (*TokenStatus, error)
	InitializeScheduler() error
	StopScheduler() error
}

type TokenServiceImpl struct {
	clientID     string
	clientSecret string
	oauthURL     string
	schedule     string

	repo         SecretRepository
	auditService audit.AuditService
	http         *http.Client
	log          *zap.Logger

	scheduler *cron.Cron

	mu     sync.RWMutex
	cached string
}

func NewTokenService(cfg *config.Config, repo SecretRepository, auditService audit.AuditService, log *zap.Logger) TokenService {
	return &TokenServiceImpl{
		clientID:     cfg.B24ClientID,
		clientSecret: cfg.B24ClientSecret,
		oauthURL:     defaultOAuthURL,
		schedule:     cfg.TokenRefreshCron,
		repo:         repo,
		auditService: auditService,
		http:         &http.Client{Timeout: 30 * time.Second},
		log:          log.Named("token"),
	}
}

// AccessToken serves the cached token, falling back to the stored one. It
// satisfies the Bitrix client's TokenSource.
func (s *TokenServiceImpl) AccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	secret, err := s.repo.Latest(ctx, SecretAccessToken)
	if err != nil {
		return "", err
	}
	if secret == nil {
		return "", fmt.Errorf("no access token stored, seed tokens first")
	}

	s.mu.Lock()
	s.cached = secret.Value
	s.mu.Unlock()
	return secret.Value, nil
}

// Refresh exchanges the stored refresh token for a fresh pair and persists
// both. Bitrix may omit the refresh token in the response; the old one then
// stays valid.
func (s *TokenServiceImpl) Refresh(ctx context.Context) error {
	if s.clientID == "" || s.clientSecret == "" {
		return fmt.Errorf("B24_CLIENT_ID and B24_CLIENT_SECRET are required for token refresh")
	}

	secret, err := s.repo.Latest(ctx, SecretRefreshToken)
	if err != nil {
		return err
	}
	if secret == nil {
		return fmt.Errorf("no refresh token stored, seed tokens first")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("refresh_token", secret.Value)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("oauth request: %w", err)
	}
	defer resp.Body.Close()

	var tokens oauthResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("decoding oauth response: %w", err)
	}
	if tokens.Error != "" {
		return fmt.Errorf("oauth refresh failed: %s (%s)", tokens.Error, tokens.ErrorDescription)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("oauth response missing access_token, status %d", resp.StatusCode)
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = secret.Value
	}

	if err := s.repo.Save(ctx, SecretAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, SecretRefreshToken, tokens.RefreshToken); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = tokens.AccessToken
	s.mu.Unlock()

	s.log.Info("Tokens refreshed", zap.Int("expires_in", tokens.ExpiresIn))

	_ = s.auditService.LogChange(ctx, common_models.AuditActionToken, "token", SecretAccessToken, map[string]common_models.Change{
		"refreshed": {New: true},
	})
	return nil
}

// Seed stores the initial token pair produced by the OAuth install flow.
func (s *TokenServiceImpl) Seed(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return fmt.Errorf("both access and refresh tokens are required")
	}
	if err := s.repo.Save(ctx, SecretAccessToken, accessToken); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, SecretRefreshToken, refreshToken); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = accessToken
	s.mu.Unlock()

	s.log.Info("Tokens seeded")
	return nil
}

func (s *TokenServiceImpl) Status(ctx context.Context) (*TokenStatus, error) {
	status := &TokenStatus{}

	access, err := s.repo.Latest(ctx, SecretAccessToken)
	if err != nil {
		return nil, err
	}
	if access != nil {
		status.HasAccessToken = true
		status.LastRefresh = access.CreatedAt
	}

	refresh, err := s.repo.Latest(ctx, SecretRefreshToken)
	if err != nil {
		return nil, err
	}
	status.HasRefreshToken = refresh != nil

	return status, nil
}

func (s *TokenServiceImpl) InitializeScheduler() error {
	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			s.log.Error("Scheduled token refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("bad token refresh schedule %q: %w", s.schedule, err)
	}
	s.scheduler.Start()
	s.log.Info("Token refresh scheduler started", zap.String("schedule", s.schedule))
	return nil
}

func (s *TokenServiceImpl) StopScheduler() error {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
	return nil
}
