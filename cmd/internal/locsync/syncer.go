package locsync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	v1 "nearme/shared/contracts/api/v1"
)

const DefaultRefreshInterval = 15 * time.Second

// API is the subset of the REST client the syncer needs; *apiclient.Client
// satisfies it.
type API interface {
	UpdateLocation(ctx context.Context, userID string, lat, lon float64) error
	SetStatus(ctx context.Context, userID string, online bool) error
	Nearby(ctx context.Context, userID string, radiusMeters int) ([]v1.User, error)
}

// Config configures a Syncer.
type Config struct {
	UserID string

	// RadiusMeters <= 0 lets the server pick its default.
	RadiusMeters    int
	RefreshInterval time.Duration
	Throttle        ThrottleConfig

	// OnError receives every failed request. Called from background goroutines.
	OnError func(error)
	// OnNearby receives each new snapshot. Called from background goroutines.
	OnNearby func([]v1.User)

	Logger *slog.Logger
}

// Syncer pushes throttled fixes and refreshes the nearby snapshot.
//
// Fixes are only pushed while online. Fetches are triggered by Run starting,
// by each sent fix once its PUT succeeds, by the refresh ticker while online,
// and by SetOnline. A trigger that arrives while a fetch is in flight is
// dropped. Once Run has returned, SetOnline and Refresh start no new requests.
type Syncer struct {
	api API
	src LocationSource
	cfg Config
	log *slog.Logger

	online   atomic.Bool
	inFlight atomic.Bool
	snapshot atomic.Pointer[[]v1.User]

	mu      sync.Mutex // guards stopped and wg.Add
	stopped bool
	wg      sync.WaitGroup
}

func NewSyncer(api API, src LocationSource, cfg Config) (*Syncer, error) {
	if api == nil || src == nil {
		return nil, errors.New("locsync: nil api or source")
	}
	cfg.UserID = strings.TrimSpace(cfg.UserID)
	if cfg.UserID == "" {
		return nil, errors.New("locsync: empty user id")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	cfg.Throttle = cfg.Throttle.normalized()
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Syncer{api: api, src: src, cfg: cfg, log: log}
	s.online.Store(true)
	empty := []v1.User{}
	s.snapshot.Store(&empty)
	return s, nil
}

// Nearby returns the current snapshot. Callers must not modify it.
func (s *Syncer) Nearby() []v1.User { return *s.snapshot.Load() }

func (s *Syncer) Online() bool { return s.online.Load() }

// Run consumes fixes until ctx is done or the source fails to start, then waits
// for outstanding requests.
func (s *Syncer) Run(ctx context.Context) error {
	fixes, err := s.src.Fixes(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stopped = false
	s.mu.Unlock()
	defer s.stop()

	s.Refresh(ctx)

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	var st ThrottleState
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if s.online.Load() {
				s.Refresh(ctx)
			}

		case fix, ok := <-fixes:
			if !ok {
				fixes = nil
				continue
			}
			// The throttle keeps running while offline so it is armed on return.
			var send bool
			send, st = s.cfg.Throttle.Evaluate(fix, st)
			if !send || !s.online.Load() {
				continue
			}
			s.goPush(ctx, fix)
		}
	}
}

// goPush sends fix and, once the server accepted it, triggers a fetch.
func (s *Syncer) goPush(ctx context.Context, fix Fix) {
	s.spawn(func() {
		if err := s.api.UpdateLocation(ctx, s.cfg.UserID, fix.Point.Lat, fix.Point.Lon); err != nil {
			s.report("locsync.location.fail", err)
			return
		}
		s.Refresh(ctx)
	})
}

// SetOnline updates the presence flag on the server, then refreshes. The local
// flag only changes when the server call succeeds.
func (s *Syncer) SetOnline(ctx context.Context, online bool) error {
	if err := s.api.SetStatus(ctx, s.cfg.UserID, online); err != nil {
		s.report("locsync.status.fail", err)
		return err
	}
	s.online.Store(online)
	s.Refresh(ctx)
	return nil
}

// Refresh starts a nearby fetch unless one is already running or Run has
// returned. It reports whether a fetch was started.
func (s *Syncer) Refresh(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("locsync.fetch.skipped", "reason", "in_flight")
		return false
	}

	started := s.spawn(func() {
		defer s.inFlight.Store(false)

		users, err := s.api.Nearby(ctx, s.cfg.UserID, s.cfg.RadiusMeters)
		if err != nil {
			s.report("locsync.fetch.fail", err)
			return
		}
		if users == nil {
			users = []v1.User{}
		}
		s.snapshot.Store(&users)
		if s.cfg.OnNearby != nil {
			s.cfg.OnNearby(users)
		}
	})
	if !started {
		s.inFlight.Store(false)
	}
	return started
}

// spawn runs fn in a goroutine tracked by Run, unless Run has already returned.
func (s *Syncer) spawn(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// stop refuses new requests and waits for the outstanding ones.
func (s *Syncer) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Syncer) report(event string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.log.Warn(event, "user_id", s.cfg.UserID, "err", err)
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}
