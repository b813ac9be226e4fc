package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"pinguard/internal/identity"
)

type ServiceSuite struct {
	suite.Suite
	store *identity.MemoryStore
	svc   *Service
	now   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = identity.NewMemoryStore()
	svc, err := New(s.store)
	s.Require().NoError(err)
	s.svc = svc
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	err = s.store.Create(context.Background(), identity.Identity{
		ID:        "id-1",
		Phone:     "1234567890",
		CreatedAt: s.now.Add(-24 * time.Hour),
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) record() identity.Identity {
	s.T().Helper()
	record, err := s.store.FindByPhone(context.Background(), "1234567890")
	s.Require().NoError(err)
	return record
}

func (s *ServiceSuite) TestFiveFailuresLock() {
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		remaining, lockedUntil, err := s.svc.RecordFailure(ctx, "1234567890", s.now)
		s.Require().NoError(err)
		s.Equal(5-i, remaining)
		s.Nil(lockedUntil)
	}

	remaining, lockedUntil, err := s.svc.RecordFailure(ctx, "1234567890", s.now)
	s.Require().NoError(err)
	s.Equal(0, remaining)
	s.Require().NotNil(lockedUntil)
	s.Equal(s.now.Add(30*time.Minute), *lockedUntil)

	// Counter and lock changed together: failures back at 0, lock set.
	record := s.record()
	s.Equal(0, record.FailedAttempts)
	s.Require().NotNil(record.LockedUntil)

	status := s.svc.Check(&record, s.now)
	s.True(status.Locked)
	s.Equal(*lockedUntil, status.Until)
}

func (s *ServiceSuite) TestLockExpiresNaturally() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _, err := s.svc.RecordFailure(ctx, "1234567890", s.now)
		s.Require().NoError(err)
	}

	record := s.record()
	s.True(s.svc.Check(&record, s.now.Add(29*time.Minute)).Locked)
	s.False(s.svc.Check(&record, s.now.Add(30*time.Minute)).Locked)
	s.False(s.svc.Check(&record, s.now.Add(31*time.Minute)).Locked)
}

func (s *ServiceSuite) TestSuccessResetsCounterAtAnyCount() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _, err := s.svc.RecordFailure(ctx, "1234567890", s.now)
		s.Require().NoError(err)
	}

	s.Require().NoError(s.svc.Clear(ctx, "1234567890", s.now))
	record := s.record()
	s.Equal(0, record.FailedAttempts)
	s.Nil(record.LockedUntil)

	// Counter starts over: four more failures don't lock.
	for i := 0; i < 4; i++ {
		_, lockedUntil, err := s.svc.RecordFailure(ctx, "1234567890", s.now)
		s.Require().NoError(err)
		s.Nil(lockedUntil)
	}
}

func (s *ServiceSuite) TestUnlockedCheck() {
	record := s.record()
	status := s.svc.Check(&record, s.now)
	s.False(status.Locked)
	s.True(status.Until.IsZero())
}

func (s *ServiceSuite) TestConfigurableThreshold() {
	svc, err := New(s.store, WithThreshold(2), WithLockDuration(time.Minute))
	s.Require().NoError(err)

	ctx := context.Background()
	_, lockedUntil, err := svc.RecordFailure(ctx, "1234567890", s.now)
	s.Require().NoError(err)
	s.Nil(lockedUntil)

	_, lockedUntil, err = svc.RecordFailure(ctx, "1234567890", s.now)
	s.Require().NoError(err)
	s.Require().NotNil(lockedUntil)
	s.Equal(s.now.Add(time.Minute), *lockedUntil)
}

func (s *ServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
}

// lockLostStore simulates a concurrent failure applying the lock between
// this caller's increment and its own ApplyLock attempt.
type lockLostStore struct {
	winnerUntil time.Time
}

func (r *lockLostStore) RecordFailure(context.Context, string) (int, *time.Time, error) {
	return DefaultThreshold, nil, nil
}

func (r *lockLostStore) ApplyLock(context.Context, string, time.Time, int) (time.Time, bool, error) {
	return r.winnerUntil, false, nil
}

func (r *lockLostStore) ClearFailures(context.Context, string, time.Time) error {
	return nil
}

func (s *ServiceSuite) TestLostLockRaceReportsStoredExpiry() {
	winnerUntil := s.now.Add(DefaultLockDuration)
	svc, err := New(&lockLostStore{winnerUntil: winnerUntil})
	s.Require().NoError(err)

	// This caller runs a few milliseconds after the winner, so its own
	// computed expiry would differ from what was persisted.
	remaining, lockedUntil, err := svc.RecordFailure(context.Background(), "1234567890", s.now.Add(25*time.Millisecond))
	s.Require().NoError(err)
	s.Equal(0, remaining)
	s.Require().NotNil(lockedUntil)
	s.Equal(winnerUntil, *lockedUntil)
}
