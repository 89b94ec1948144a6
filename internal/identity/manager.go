package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/epetrov/studyvault/internal/common"
	"github.com/epetrov/studyvault/internal/logging"
	"github.com/epetrov/studyvault/internal/models"
	"github.com/epetrov/studyvault/internal/profile"
)

// SignupOutcome reports the two independently-failing signup steps. When the
// provider identity was created but the profile insert failed, Identity is
// set, ProfileCreated is false, and ProfileErr holds the cause; the user is
// authenticated with a degraded profile and no provider-side rollback is
// attempted (provider user deletion is out of scope for this layer).
type SignupOutcome struct {
	Identity       *models.Identity
	ProfileCreated bool
	ProfileErr     error
}

// Manager composes the credential provider and the profile store into a
// single reconciled identity view.
//
// One reconciliation loop (Run) owns the process-wide session value. Every
// provider notification transitions the session to profile-syncing, issues
// one profile read for the notified identity, and transitions to ready once
// the read returns, successful or not. A failed or empty read degrades the
// reconciled user instead of blocking readiness: identity (can I act as this
// user) and profile completeness are independent concerns, and a profile
// outage must never lock a user out.
type Manager struct {
	provider Provider
	profiles profile.Repository
	logger   logging.Logger

	// results carries finished profile fetches back into the loop.
	results chan syncResult
	// refresh asks the loop to re-run read-and-merge for the live identity.
	refresh chan struct{}

	mu      sync.RWMutex
	session models.Session
	current *models.ReconciledUser
	seq     uint64
	subs    map[uint64]chan models.Session
	nextSub uint64
}

type syncResult struct {
	seq      uint64
	identity *models.Identity
	rec      *models.ProfileRecord
	err      error
}

// NewManager constructs a session manager. Call Run to start the
// reconciliation loop before using the session-changing operations.
func NewManager(provider Provider, profiles profile.Repository, logger logging.Logger) *Manager {
	return &Manager{
		provider: provider,
		profiles: profiles,
		logger:   logger.With("module", "session_manager"),
		results:  make(chan syncResult),
		refresh:  make(chan struct{}, 1),
		subs:     make(map[uint64]chan models.Session),
	}
}

// Run consumes provider notifications and finished profile fetches until ctx
// is done or the provider closes its event channel. It is the only goroutine
// that mutates the session value.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-m.provider.Events():
			if !ok {
				return
			}
			m.handleEvent(ctx, ev)
		case res := <-m.results:
			m.handleSyncResult(ctx, res)
		case <-m.refresh:
			m.handleRefresh(ctx)
		}
	}
}

// CurrentUser returns the latest published reconciled user, or nil when
// unauthenticated. While a profile sync is in flight the previous ready
// value keeps being returned; a torn or half-merged value is never observable.
func (m *Manager) CurrentUser() *models.ReconciledUser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	c := *m.current
	return &c
}

// Session returns the latest published session snapshot.
func (m *Manager) Session() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.session
	s.Identity = cloneIdentity(s.Identity)
	return s
}

// Subscribe registers a session-change subscriber. The returned cancel
// function removes it. Slow subscribers miss intermediate values rather than
// blocking the loop.
func (m *Manager) Subscribe() (<-chan models.Session, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan models.Session, 8)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Login delegates to the credential provider and returns as soon as the
// credentials are validated. It does not wait for profile sync: callers get
// the merged result asynchronously via the subscription stream. A failed
// login causes no session transition.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if _, err := m.provider.SignIn(ctx, email, password); err != nil {
		return err
	}
	return nil
}

// Signup creates the provider identity and then inserts the profile record.
// The two steps fail independently: a profile insert failure leaves the
// already-created identity in place and is reported through the outcome, not
// as a call failure, so callers can present the partial-success condition.
func (m *Manager) Signup(ctx context.Context, email, password string, seed models.ProfileSeed) (*SignupOutcome, error) {
	meta := Metadata{Name: &seed.DisplayName}
	ident, err := m.provider.SignUp(ctx, email, password, meta)
	if err != nil {
		return nil, err
	}

	rec := &models.ProfileRecord{
		Identity:    ident.ID,
		DisplayName: seed.DisplayName,
		Class:       seed.Class,
		TargetYear:  seed.TargetYear,
	}

	outcome := &SignupOutcome{Identity: ident, ProfileCreated: true}
	if err := m.profiles.Insert(ctx, rec); err != nil {
		m.logger.Error(ctx, "profile insert failed after signup, identity kept",
			"identity", ident.ID, "error", err)
		outcome.ProfileCreated = false
		outcome.ProfileErr = err
	}

	m.requestRefresh()
	return outcome, nil
}

// Logout tears down the session via the provider. The unauthenticated state
// is published when the provider's signed-out notification arrives.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.session.Identity != nil {
		m.session.Phase = models.PhaseSigningOut
		m.publishLocked(ctx)
	}
	m.mu.Unlock()

	return m.provider.SignOut(ctx)
}

// UpdateProfile writes the patch to the profile store first, then
// best-effort mirrors the name/avatar subset into the identity's carried
// metadata, then re-runs read-and-merge so the in-memory reconciled user
// reflects exactly what is durably stored. A mirror failure is logged and
// swallowed: the store write already succeeded and is authoritative.
func (m *Manager) UpdateProfile(ctx context.Context, patch models.ProfilePatch) error {
	m.mu.RLock()
	ident := cloneIdentity(m.session.Identity)
	m.mu.RUnlock()

	if ident == nil {
		return common.ErrNotAuthenticated
	}

	if err := m.writeProfile(ctx, ident, patch); err != nil {
		return fmt.Errorf("profile update: %w", err)
	}

	mirror := Metadata{Name: patch.DisplayName, AvatarURL: patch.AvatarURL}
	if mirror.Name != nil || mirror.AvatarURL != nil {
		if err := m.provider.UpdateMetadata(ctx, mirror); err != nil {
			m.logger.Warn(ctx, "metadata mirror failed, profile store remains authoritative",
				"identity", ident.ID, "error", err)
		}
	}

	m.requestRefresh()
	return nil
}

// writeProfile applies the patch on top of the stored record, inserting the
// row when the identity has none yet (a degraded user finishing the profile).
func (m *Manager) writeProfile(ctx context.Context, ident *models.Identity, patch models.ProfilePatch) error {
	rec, err := m.profiles.GetByIdentity(ctx, ident.ID)
	if err != nil {
		if !errors.Is(err, common.ErrRecordNotFound) {
			return err
		}
		rec = &models.ProfileRecord{Identity: ident.ID, DisplayName: ident.Name, AvatarURL: ident.AvatarURL}
		applyPatch(rec, patch)
		return m.profiles.Insert(ctx, rec)
	}

	applyPatch(rec, patch)
	return m.profiles.Update(ctx, rec)
}

func applyPatch(rec *models.ProfileRecord, patch models.ProfilePatch) {
	if patch.DisplayName != nil {
		rec.DisplayName = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		rec.AvatarURL = *patch.AvatarURL
	}
	if patch.Class != nil {
		rec.Class = *patch.Class
	}
	if patch.TargetYear != nil {
		rec.TargetYear = *patch.TargetYear
	}
}

// requestRefresh nudges the loop to re-sync the live identity. Coalesces
// when a refresh is already pending.
func (m *Manager) requestRefresh() {
	select {
	case m.refresh <- struct{}{}:
	default:
	}
}

// handleEvent replaces the session wholesale for every provider
// notification and starts one profile fetch for the notified identity. A
// fetch started here supersedes any fetch still in flight: only the result
// carrying the latest sequence number may publish.
func (m *Manager) handleEvent(ctx context.Context, ev Event) {
	if ev.Identity == nil {
		m.mu.Lock()
		m.seq++
		m.session = models.Session{Phase: models.PhaseUnauthenticated}
		m.current = nil
		m.publishLocked(ctx)
		m.mu.Unlock()
		return
	}

	m.startSync(ctx, cloneIdentity(ev.Identity))
}

// handleRefresh re-runs read-and-merge for the live identity, if any.
func (m *Manager) handleRefresh(ctx context.Context) {
	m.mu.RLock()
	ident := cloneIdentity(m.session.Identity)
	m.mu.RUnlock()

	if ident == nil {
		return
	}
	m.startSync(ctx, ident)
}

func (m *Manager) startSync(ctx context.Context, ident *models.Identity) {
	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.session = models.Session{Identity: ident, Phase: models.PhaseProfileSyncing}
	// m.current is left untouched: stale reads keep returning the previous
	// ready value until the merge publishes.
	m.publishLocked(ctx)
	m.mu.Unlock()

	go func() {
		rec, err := m.profiles.GetByIdentity(ctx, ident.ID)
		select {
		case m.results <- syncResult{seq: seq, identity: ident, rec: rec, err: err}:
		case <-ctx.Done():
		}
	}()
}

// handleSyncResult publishes the merged user for the latest notification.
// Results tied to superseded notifications are discarded so a slow stale
// fetch can never overwrite a more recent login or logout.
func (m *Manager) handleSyncResult(ctx context.Context, res syncResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if res.seq != m.seq {
		return
	}

	user := reconcile(res.identity, res.rec)

	if res.err != nil {
		if errors.Is(res.err, common.ErrRecordNotFound) {
			m.logger.Info(ctx, "no profile record, merging degraded", "identity", res.identity.ID)
		} else {
			m.logger.Error(ctx, "profile read failed, merging degraded",
				"identity", res.identity.ID, "error", res.err)
		}
	}

	m.current = user
	m.session = models.Session{Identity: res.identity, Phase: models.PhaseReady}
	m.publishLocked(ctx)
}

// reconcile merges the profile record (authoritative when present) with the
// fallback fields carried on the identity.
func reconcile(ident *models.Identity, rec *models.ProfileRecord) *models.ReconciledUser {
	if rec == nil {
		return &models.ReconciledUser{
			Identity:     ident.ID,
			DisplayName:  ident.Name,
			Email:        ident.Email,
			AvatarURL:    ident.AvatarURL,
			Completeness: models.ProfileDegraded,
		}
	}

	user := &models.ReconciledUser{
		Identity:     ident.ID,
		DisplayName:  rec.DisplayName,
		Email:        ident.Email,
		AvatarURL:    rec.AvatarURL,
		Class:        rec.Class,
		TargetYear:   rec.TargetYear,
		Completeness: models.ProfileFull,
	}
	if user.DisplayName == "" {
		user.DisplayName = ident.Name
	}
	if user.AvatarURL == "" {
		user.AvatarURL = ident.AvatarURL
	}
	return user
}

// publishLocked fans the current session out to subscribers. Callers must
// hold m.mu.
func (m *Manager) publishLocked(ctx context.Context) {
	snapshot := m.session
	snapshot.Identity = cloneIdentity(snapshot.Identity)

	for _, ch := range m.subs {
		select {
		case ch <- snapshot:
		default:
			m.logger.Warn(ctx, "subscriber lagging, dropping session update",
				"phase", snapshot.Phase.String())
		}
	}
}
