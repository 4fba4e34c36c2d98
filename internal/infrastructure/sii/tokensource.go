package sii

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/contaflow/sii-reconciliation-backend/internal/domain/errors"
	domainsii "github.com/contaflow/sii-reconciliation-backend/internal/domain/sii"
)

// Signer produces the company's signed seed. The signing material
// (certificates, keys) lives with the credential provider behind this
// port, never in this process.
type Signer interface {
	SignSeed(ctx context.Context, companyID uuid.UUID, seed string) (string, error)
}

// SeedTokenClient is the slice of the authority client the token source
// needs.
type SeedTokenClient interface {
	GetSeed(ctx context.Context) (string, error)
	GetToken(ctx context.Context, signedSeed string) (string, error)
}

// authState tracks the per-company authentication handshake
type authState int

const (
	stateUnauthenticated authState = iota
	stateSeedObtained
	stateTokenObtained
	stateExpired
)

func (s authState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateSeedObtained:
		return "seed_obtained"
	case stateTokenObtained:
		return "token_obtained"
	case stateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// companyAuth holds one tenant's handshake state. The mutex makes token
// refresh single-flight: concurrent callers for the same company wait for
// one refresh instead of racing the authority.
type companyAuth struct {
	mu    sync.Mutex
	state authState
	token domainsii.Token
}

// TokenSource caches one session token per company and runs the
// seed / signed-seed / token handshake when the cached token is missing
// or stale. Tenants never share tokens or locks.
type TokenSource struct {
	client SeedTokenClient
	signer Signer
	ttl    time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	companies map[uuid.UUID]*companyAuth

	now func() time.Time
}

// NewTokenSource creates a per-company token cache
func NewTokenSource(client SeedTokenClient, signer Signer, ttl time.Duration, logger *zap.Logger) *TokenSource {
	return &TokenSource{
		client:    client,
		signer:    signer,
		ttl:       ttl,
		logger:    logger,
		companies: make(map[uuid.UUID]*companyAuth),
		now:       time.Now,
	}
}

// Token returns a valid session token for the company, reusing the cached
// one inside its validity window and running the full handshake otherwise.
func (ts *TokenSource) Token(ctx context.Context, companyID uuid.UUID) (domainsii.Token, error) {
	auth := ts.authFor(companyID)

	auth.mu.Lock()
	defer auth.mu.Unlock()

	now := ts.now()
	if auth.state == stateTokenObtained {
		if auth.token.Valid(now) {
			return auth.token, nil
		}
		auth.state = stateExpired
		ts.logger.Debug("cached token expired",
			zap.String("company_id", companyID.String()),
			zap.Time("expired_at", auth.token.ExpiresAt()))
	}

	token, err := ts.handshake(ctx, companyID, auth)
	if err != nil {
		// Any failure mid-handshake restarts the full three-step flow
		// next time, including after a timeout between steps.
		auth.state = stateUnauthenticated
		auth.token = domainsii.Token{}
		return domainsii.Token{}, err
	}
	return token, nil
}

// Invalidate discards the company's cached token. Callers use it when the
// authority rejects a token mid-session.
func (ts *TokenSource) Invalidate(companyID uuid.UUID) {
	auth := ts.authFor(companyID)

	auth.mu.Lock()
	defer auth.mu.Unlock()

	auth.state = stateUnauthenticated
	auth.token = domainsii.Token{}
	ts.logger.Info("session token invalidated",
		zap.String("company_id", companyID.String()))
}

// handshake runs seed, sign, token under the company lock
func (ts *TokenSource) handshake(ctx context.Context, companyID uuid.UUID, auth *companyAuth) (domainsii.Token, error) {
	seed, err := ts.client.GetSeed(ctx)
	if err != nil {
		return domainsii.Token{}, domainerrors.Wrap(err, "obtaining seed")
	}
	auth.state = stateSeedObtained

	signedSeed, err := ts.signer.SignSeed(ctx, companyID, seed)
	if err != nil {
		return domainsii.Token{}, domainerrors.Wrap(err, "signing seed")
	}

	value, err := ts.client.GetToken(ctx, signedSeed)
	if err != nil {
		return domainsii.Token{}, domainerrors.Wrap(err, "exchanging signed seed")
	}

	auth.token = domainsii.NewToken(value, ts.now(), ts.ttl)
	auth.state = stateTokenObtained
	ts.logger.Debug("session token obtained",
		zap.String("company_id", companyID.String()),
		zap.Time("expires_at", auth.token.ExpiresAt()))
	return auth.token, nil
}

func (ts *TokenSource) authFor(companyID uuid.UUID) *companyAuth {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	auth, ok := ts.companies[companyID]
	if !ok {
		auth = &companyAuth{state: stateUnauthenticated}
		ts.companies[companyID] = auth
	}
	return auth
}
