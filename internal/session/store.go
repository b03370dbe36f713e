// Package session holds the client-side session: the current account, its
// tokens and its profile, shared by every reader in the process.
//
// A Store is an explicit object with an Initialize/Close lifecycle. Readers
// take a Snapshot or Subscribe to changes; only the Store's own operations
// write to it. Every auth-state change bumps a generation counter and a
// profile fetch is applied only if its generation is still current, so a slow
// fetch for an older session can never overwrite a newer one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/wayfarer/internal/domain"
)

// EventType names an auth-state change reported by the AuthClient.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is one auth-state change. Session is nil for EventSignedOut.
type Event struct {
	Type    EventType
	Session *domain.Session
}

// SignUpRequest is the registration input.
type SignUpRequest struct {
	Email    string                `json:"email"`
	Password string                `json:"password"`
	Role     domain.Role           `json:"role"`
	Metadata domain.SignUpMetadata `json:"metadata"`
}

// AuthClient is the authentication provider as seen from the client.
type AuthClient interface {
	// SignUp returns a nil session when the provider requires email confirmation.
	SignUp(ctx context.Context, req SignUpRequest) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	// SignOut revokes sessions; scope is "local", "others" or "global".
	SignOut(ctx context.Context, accessToken, scope string) error
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	GetAccount(ctx context.Context, accessToken string) (domain.Account, error)
	// Subscribe returns the auth event stream and a function that closes it.
	Subscribe() (<-chan Event, func())
}

// ProfileAPI reads and writes profiles on the backend.
type ProfileAPI interface {
	// GetProfile returns domain.ErrNotFound while the profile row does not exist yet.
	GetProfile(ctx context.Context, accessToken string, accountID uuid.UUID) (domain.Profile, error)
	UpdateProfile(ctx context.Context, accessToken string, patch domain.ProfilePatch) error
}

// TokenCache persists the session between process runs.
// Load returns nil, nil when nothing is cached.
type TokenCache interface {
	Load() (*domain.Session, error)
	Save(s *domain.Session) error
	Clear() error
}

// Navigator performs a full navigation reset to path.
type Navigator interface {
	Reset(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Reset(path string) { f(path) }

// State is a point-in-time view of the session. Pointers are never shared
// with the Store's internal copy.
type State struct {
	Loading bool
	Account *domain.Account
	Session *domain.Session
	Profile *domain.Profile
}

// Authenticated reports whether the state carries an account.
func (s State) Authenticated() bool {
	return s.Account != nil
}

// Store is the process-wide session. Construct it with New.
type Store struct {
	auth     AuthClient
	profiles ProfileAPI
	cache    TokenCache
	nav      Navigator
	log      *slog.Logger
	now      func() time.Time

	retries   uint64
	retryBase time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	gen         uint64
	subs        map[int]chan State
	nextSub     int
	initialized bool
	unsubscribe func()
	closed      bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithNavigator sets the navigator used by SignOut.
func WithNavigator(n Navigator) Option {
	return func(s *Store) { s.nav = n }
}

// WithProfileRetry sets how often a missing profile is re-fetched and the
// first delay of the exponential backoff between attempts.
func WithProfileRetry(retries uint64, base time.Duration) Option {
	return func(s *Store) {
		s.retries = retries
		s.retryBase = base
	}
}

// WithClock overrides time.Now, used to decide whether a cached token expired.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store in the loading state. Call Initialize to resolve it.
func New(auth AuthClient, profiles ProfileAPI, cache TokenCache, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		auth:      auth,
		profiles:  profiles,
		cache:     cache,
		nav:       NavigatorFunc(func(string) {}),
		log:       slog.Default(),
		now:       time.Now,
		retries:   3,
		retryBase: 500 * time.Millisecond,
		ctx:       ctx,
		cancel:    cancel,
		state:     State{Loading: true},
		subs:      make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize recovers the cached session, validates it with the provider,
// loads the profile and starts listening for auth events. It never fails:
// any problem resolves to a signed-out state and is logged. Calling it again
// is a no-op.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.initialized || s.closed {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	gen := s.gen
	s.mu.Unlock()

	sess := s.recover(ctx)

	s.mu.Lock()
	if s.gen != gen {
		// A sign-in or sign-out raced ahead of initialization; it wins.
		s.mu.Unlock()
		s.listen()
		return
	}
	if sess == nil {
		s.state = State{}
		s.notifyLocked()
		s.mu.Unlock()
		s.listen()
		return
	}
	s.gen++
	gen = s.gen
	s.state = State{Loading: true, Account: &sess.Account, Session: sess}
	s.notifyLocked()
	s.mu.Unlock()

	s.loadProfile(ctx, gen, sess)
	s.listen()
}

// recover returns a validated session from the cache, or nil.
func (s *Store) recover(ctx context.Context) *domain.Session {
	sess, err := s.cache.Load()
	if err != nil {
		s.log.WarnContext(ctx, "session cache unreadable", "error", err)
		return nil
	}
	if sess == nil {
		return nil
	}
	if sess.Expired(s.now()) {
		refreshed, err := s.auth.Refresh(ctx, sess.RefreshToken)
		if err != nil {
			s.log.InfoContext(ctx, "cached session could not be refreshed", "error", err)
			s.clearCache(ctx)
			return nil
		}
		sess = refreshed
		s.saveCache(ctx, sess)
	}
	acct, err := s.auth.GetAccount(ctx, sess.AccessToken)
	if err != nil {
		s.log.InfoContext(ctx, "cached session rejected", "error", err)
		s.clearCache(ctx)
		return nil
	}
	sess.Account = acct
	return sess
}

func (s *Store) listen() {
	ch, unsubscribe := s.auth.Subscribe()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for ev := range ch {
			s.handle(ev)
		}
	}()
}

// handle applies an auth event. Events that repeat the session already held
// are ignored, so the Store's own sign-in does not fetch the profile twice.
func (s *Store) handle(ev Event) {
	switch ev.Type {
	case EventSignedOut:
		s.clearLocal()
		s.clearCache(s.ctx)
	case EventTokenRefreshed:
		if ev.Session == nil {
			return
		}
		s.mu.Lock()
		if s.state.Account != nil && s.state.Account.ID == ev.Session.Account.ID {
			cp := *ev.Session
			s.state.Session = &cp
			s.notifyLocked()
		}
		s.mu.Unlock()
		s.saveCache(s.ctx, ev.Session)
	case EventSignedIn, EventUserUpdated:
		if ev.Session == nil {
			return
		}
		s.mu.Lock()
		if ev.Type == EventSignedIn && s.state.Session != nil && s.state.Session.AccessToken == ev.Session.AccessToken {
			s.mu.Unlock()
			return
		}
		gen := s.setSessionLocked(ev.Session, ev.Type == EventUserUpdated)
		s.mu.Unlock()
		s.saveCache(s.ctx, ev.Session)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loadProfile(s.ctx, gen, ev.Session)
		}()
	}
}

// setSessionLocked installs sess as current and returns the new generation.
// The profile is kept only when keepProfile is set and the account is unchanged.
func (s *Store) setSessionLocked(sess *domain.Session, keepProfile bool) uint64 {
	s.gen++
	cp := *sess
	acct := cp.Account
	profile := s.state.Profile
	if !keepProfile || profile == nil || profile.AccountID != acct.ID {
		profile = nil
	}
	s.state = State{Account: &acct, Session: &cp, Profile: profile}
	s.notifyLocked()
	return s.gen
}

// loadProfile fetches the profile for sess and applies it if gen is still
// current. Loading is cleared either way when gen is current.
func (s *Store) loadProfile(ctx context.Context, gen uint64, sess *domain.Session) {
	p, err := s.fetch(ctx, sess.AccessToken, sess.Account.ID)
	if err != nil {
		s.log.WarnContext(ctx, "profile not loaded", "account_id", sess.Account.ID, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.DebugContext(ctx, "stale profile discarded", "account_id", sess.Account.ID)
		return
	}
	s.state.Profile = p
	s.state.Loading = false
	s.notifyLocked()
}

// fetch reads a profile with bounded exponential backoff while the backend
// reports it missing. A profile still missing after the last retry is nil
// with no error.
func (s *Store) fetch(ctx context.Context, token string, accountID uuid.UUID) (*domain.Profile, error) {
	var got domain.Profile
	b := retry.WithMaxRetries(s.retries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		p, err := s.profiles.GetProfile(ctx, token, accountID)
		if errors.Is(err, domain.ErrNotFound) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		got = p
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &got, nil
}

// FetchProfile loads the profile of accountID with the current session's
// token. The result is also applied to the Store when accountID is the
// current account and no auth change happened meanwhile. A profile that does
// not exist yet is nil with no error.
func (s *Store) FetchProfile(ctx context.Context, accountID uuid.UUID) (*domain.Profile, error) {
	s.mu.Lock()
	sess := s.state.Session
	gen := s.gen
	s.mu.Unlock()
	if sess == nil {
		return nil, fmt.Errorf("session.Store.FetchProfile: %w", domain.ErrNotAuthenticated)
	}

	p, err := s.fetch(ctx, sess.AccessToken, accountID)
	if err != nil {
		return nil, fmt.Errorf("session.Store.FetchProfile: %w", err)
	}
	if accountID == sess.Account.ID {
		s.mu.Lock()
		if s.gen == gen {
			s.state.Profile = p
			s.notifyLocked()
		}
		s.mu.Unlock()
	}
	return p, nil
}

// SignUp registers a new account. Cached artifacts are cleared first. When
// the provider requires email confirmation the result is nil with no error
// and the Store stays signed out.
func (s *Store) SignUp(ctx context.Context, req SignUpRequest) (*domain.Session, error) {
	s.clearCache(ctx)
	sess, err := s.auth.SignUp(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("session.Store.SignUp: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	s.establish(ctx, sess)
	return sess, nil
}

// SignIn authenticates with a password. Any session cached locally is
// revoked with the provider first. Failures are never retried.
func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	stale, err := s.cache.Load()
	if err != nil {
		s.log.WarnContext(ctx, "session cache unreadable", "error", err)
	}
	s.clearCache(ctx)
	if stale != nil {
		if err := s.auth.SignOut(ctx, stale.AccessToken, "local"); err != nil {
			s.log.InfoContext(ctx, "stale session not revoked", "error", err)
		}
	}

	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("session.Store.SignIn: %w", err)
	}
	s.establish(ctx, sess)
	return sess, nil
}

func (s *Store) establish(ctx context.Context, sess *domain.Session) {
	s.mu.Lock()
	gen := s.setSessionLocked(sess, false)
	s.mu.Unlock()
	s.saveCache(ctx, sess)
	s.loadProfile(ctx, gen, sess)
}

// SignOut clears the local state at once, then the cache, then revokes the
// session with the provider, and finally resets navigation to the landing
// route. Calling it while signed out is harmless. The returned error only
// reports a failed revocation; local state is cleared regardless.
func (s *Store) SignOut(ctx context.Context) error {
	prev := s.clearLocal()
	s.clearCache(ctx)

	var err error
	if prev != nil {
		if rerr := s.auth.SignOut(ctx, prev.AccessToken, "local"); rerr != nil {
			err = fmt.Errorf("session.Store.SignOut: %w", rerr)
		}
	}
	s.nav.Reset("/")
	return err
}

// clearLocal drops account, session and profile and returns the session that
// was held, if any.
func (s *Store) clearLocal() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state.Session
	s.gen++
	s.state = State{}
	s.notifyLocked()
	return prev
}

// UpdateProfile sends patch to the backend, then re-fetches and replaces the
// whole profile rather than merging the patch locally.
func (s *Store) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (*domain.Profile, error) {
	s.mu.Lock()
	sess := s.state.Session
	gen := s.gen
	s.mu.Unlock()
	if sess == nil {
		return nil, fmt.Errorf("session.Store.UpdateProfile: %w", domain.ErrNotAuthenticated)
	}

	if err := s.profiles.UpdateProfile(ctx, sess.AccessToken, patch); err != nil {
		return nil, fmt.Errorf("session.Store.UpdateProfile: %w", err)
	}
	p, err := s.profiles.GetProfile(ctx, sess.AccessToken, sess.Account.ID)
	if err != nil {
		return nil, fmt.Errorf("session.Store.UpdateProfile: refetch: %w", err)
	}

	s.mu.Lock()
	if s.gen == gen {
		s.state.Profile = &p
		s.notifyLocked()
	}
	s.mu.Unlock()
	return &p, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe returns a channel that receives the latest state after every
// change. Slow readers only see the most recent state. The channel is closed
// by cancel or by Close.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan State, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Store) notifyLocked() {
	st := s.state.clone()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

// Close stops the event subscription, cancels in-flight profile fetches and
// waits for them to finish. Subscriber channels are closed.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) clearCache(ctx context.Context) {
	if err := s.cache.Clear(); err != nil {
		s.log.WarnContext(ctx, "session cache not cleared", "error", err)
	}
}

func (s *Store) saveCache(ctx context.Context, sess *domain.Session) {
	if err := s.cache.Save(sess); err != nil {
		s.log.WarnContext(ctx, "session cache not saved", "error", err)
	}
}

func (st State) clone() State {
	out := State{Loading: st.Loading}
	if st.Account != nil {
		a := *st.Account
		out.Account = &a
	}
	if st.Session != nil {
		sess := *st.Session
		out.Session = &sess
	}
	if st.Profile != nil {
		p := *st.Profile
		out.Profile = &p
	}
	return out
}
