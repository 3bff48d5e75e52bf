package nearby

import (
	"context"
	"errors"
	"time"

	"nearme/cmd/identity"
	"nearme/cmd/internal/metrics"
)

// Finder is the directory query Service depends on; identity.Store satisfies it.
type Finder interface {
	Nearby(ctx context.Context, userID string, radiusMeters float64) ([]identity.NearbyUser, error)
}

type Service struct {
	finder Finder
	policy RadiusPolicy
	now    func() time.Time
}

type Option func(*Service) error

func WithRadiusPolicy(p RadiusPolicy) Option {
	return func(s *Service) error {
		if p.MaxMeters < 0 || p.DefaultMeters < 0 {
			return errors.New("nearby: negative radius policy")
		}
		s.policy = p.normalized()
		return nil
	}
}

func NewService(finder Finder, opts ...Option) (*Service, error) {
	if finder == nil {
		return nil, errors.New("nearby: nil finder")
	}
	s := &Service{finder: finder, policy: DefaultRadiusPolicy(), now: time.Now}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) Policy() RadiusPolicy { return s.policy }

// Lookup parses rawRadius with the service policy and runs Nearby.
func (s *Service) Lookup(ctx context.Context, userID, rawRadius string) ([]identity.NearbyUser, error) {
	radius, err := s.policy.Parse(rawRadius)
	if err != nil {
		metrics.RecordNearbyQuery(metrics.NearbyInvalid, 0, 0)
		return nil, err
	}
	return s.Nearby(ctx, userID, radius)
}

// Nearby returns the other online users within radiusMeters of userID's stored
// location, nearest first. The requester is never included. An unknown userID
// yields identity.ErrNotFound.
func (s *Service) Nearby(ctx context.Context, userID string, radiusMeters int) ([]identity.NearbyUser, error) {
	start := s.now()
	radius := s.policy.Clamp(radiusMeters)

	out, err := s.finder.Nearby(ctx, userID, float64(radius))
	elapsed := s.now().Sub(start)

	switch {
	case err == nil:
		metrics.RecordNearbyQuery(metrics.NearbyOK, elapsed, len(out))
		return out, nil
	case identity.IsNotFound(err):
		metrics.RecordNearbyQuery(metrics.NearbyNotFound, elapsed, 0)
	default:
		metrics.RecordNearbyQuery(metrics.NearbyError, elapsed, 0)
	}
	return nil, err
}
