package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/epetrov/studyvault/internal/common"
	"github.com/epetrov/studyvault/internal/config"
	"github.com/epetrov/studyvault/internal/dbx"
	"github.com/epetrov/studyvault/internal/logging"
	"github.com/epetrov/studyvault/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const (
	uniqueViolationCode = "23505"

	signInAttemptLimit  = 5
	signInAttemptWindow = time.Minute

	eventBufferSize = 16
)

// PostgresProvider is a credential provider backed by a users table. It
// verifies bcrypt password hashes, mints JWT session tokens, and emits
// session-change events on a channel.
type PostgresProvider struct {
	db            dbx.DBTX
	logger        logging.Logger
	secretKey     []byte
	tokenValidity time.Duration
	limiter       *rateLimiter

	events chan Event

	mu       sync.Mutex
	identity *models.Identity
	token    string
}

// NewPostgresProvider constructs a provider bound to db using the JWT secret
// and token validity from cfg.
func NewPostgresProvider(db dbx.DBTX, cfg *config.Config, logger logging.Logger) *PostgresProvider {
	return &PostgresProvider{
		db:            db,
		logger:        logger.With("module", "credential_provider"),
		secretKey:     []byte(cfg.SecretKey),
		tokenValidity: cfg.SessionTokenValidityDuration,
		limiter:       newRateLimiter(signInAttemptLimit, signInAttemptWindow),
		events:        make(chan Event, eventBufferSize),
	}
}

// Events returns the session-change notification channel.
func (p *PostgresProvider) Events() <-chan Event {
	return p.events
}

func (p *PostgresProvider) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn(ctx, "event channel full, dropping notification", "kind", ev.Kind.String())
	}
}

// SignIn validates the credentials and establishes a session. A missing user
// and a wrong password are indistinguishable to the caller.
func (p *PostgresProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	if !p.limiter.allow(email) {
		return nil, common.ErrRateLimited
	}

	query :=
		`SELECT id, email, password_hash, display_name, avatar_url FROM users
		 WHERE email = $1
		 `

	var id, storedEmail, hash, name, avatar string
	err := p.db.QueryRowContext(ctx, query, email).Scan(&id, &storedEmail, &hash, &name, &avatar)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, common.ErrInvalidCredentials
	}

	token, err := GenerateSessionToken(id, storedEmail, p.secretKey, p.tokenValidity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}

	identity := &models.Identity{ID: id, Email: storedEmail, Name: name, AvatarURL: avatar}

	p.mu.Lock()
	p.identity = identity
	p.token = token
	p.mu.Unlock()

	p.limiter.reset(email)
	p.emit(ctx, Event{Kind: EventSignedIn, Identity: cloneIdentity(identity)})
	return cloneIdentity(identity), nil
}

// SignUp creates a new identity and signs it in. The fallback metadata from
// meta is stored on the identity itself.
func (p *PostgresProvider) SignUp(ctx context.Context, email, password string, meta Metadata) (*models.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}

	name := ""
	if meta.Name != nil {
		name = *meta.Name
	}
	avatar := ""
	if meta.AvatarURL != nil {
		avatar = *meta.AvatarURL
	}

	query :=
		`INSERT INTO users (email, password_hash, display_name, avatar_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	var id string
	if err := p.db.QueryRowContext(ctx, query, email, string(hash), name, avatar).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}

	token, err := GenerateSessionToken(id, email, p.secretKey, p.tokenValidity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}

	identity := &models.Identity{ID: id, Email: email, Name: name, AvatarURL: avatar}

	p.mu.Lock()
	p.identity = identity
	p.token = token
	p.mu.Unlock()

	p.emit(ctx, Event{Kind: EventSignedIn, Identity: cloneIdentity(identity)})
	return cloneIdentity(identity), nil
}

// SignOut tears down the live session.
func (p *PostgresProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.identity = nil
	p.token = ""
	p.mu.Unlock()

	p.emit(ctx, Event{Kind: EventSignedOut})
	return nil
}

// RefreshSession re-mints the session token for the live identity and emits
// a token-refreshed notification.
func (p *PostgresProvider) RefreshSession(ctx context.Context) error {
	p.mu.Lock()
	identity := p.identity
	p.mu.Unlock()

	if identity == nil {
		return common.ErrNotAuthenticated
	}

	token, err := GenerateSessionToken(identity.ID, identity.Email, p.secretKey, p.tokenValidity)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}

	p.mu.Lock()
	p.token = token
	p.mu.Unlock()

	p.emit(ctx, Event{Kind: EventTokenRefreshed, Identity: cloneIdentity(identity)})
	return nil
}

// UpdateMetadata patches the fallback metadata carried on the live identity.
func (p *PostgresProvider) UpdateMetadata(ctx context.Context, patch Metadata) error {
	p.mu.Lock()
	identity := cloneIdentity(p.identity)
	p.mu.Unlock()

	if identity == nil {
		return common.ErrNotAuthenticated
	}

	if patch.Name != nil {
		identity.Name = *patch.Name
	}
	if patch.AvatarURL != nil {
		identity.AvatarURL = *patch.AvatarURL
	}

	query :=
		`UPDATE users SET display_name = $2, avatar_url = $3
		 WHERE id = $1
		 `

	if _, err := p.db.ExecContext(ctx, query, identity.ID, identity.Name, identity.AvatarURL); err != nil {
		return fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}

	p.mu.Lock()
	p.identity = identity
	p.mu.Unlock()

	p.emit(ctx, Event{Kind: EventMetadataUpdated, Identity: cloneIdentity(identity)})
	return nil
}

// SessionToken returns the live session token, or empty when signed out.
func (p *PostgresProvider) SessionToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Close closes the event channel. No events may be emitted afterwards.
func (p *PostgresProvider) Close() {
	close(p.events)
}

func cloneIdentity(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
