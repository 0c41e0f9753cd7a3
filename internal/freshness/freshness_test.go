package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type FreshnessSuite struct {
	suite.Suite
	now time.Time
	p   Policy
}

func (s *FreshnessSuite) SetupTest() {
	s.now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.p = New(0)
}

func (s *FreshnessSuite) TestDefaultTTL() {
	s.Equal(30*time.Minute, s.p.TTL)
	s.Equal(5*time.Minute, New(5*time.Minute).TTL)
}

func (s *FreshnessSuite) TestIsFresh() {
	s.True(s.p.IsFresh(s.now.Add(-29*time.Minute), s.now))
	s.False(s.p.IsFresh(s.now.Add(-31*time.Minute), s.now))
	s.False(s.p.IsFresh(s.now.Add(-30*time.Minute), s.now))
	s.False(s.p.IsFresh(time.Time{}, s.now))
}

func (s *FreshnessSuite) TestZeroPolicyUsesDefault() {
	var p Policy
	s.True(p.IsFresh(s.now.Add(-10*time.Minute), s.now))
	s.False(p.IsFresh(s.now.Add(-40*time.Minute), s.now))
}

func (s *FreshnessSuite) TestAnyFresh_UsesNewestOnly() {
	s.True(s.p.AnyFresh([]time.Time{
		s.now.Add(-10 * 24 * time.Hour),
		s.now.Add(-1 * time.Minute),
		{},
	}, s.now))
	s.False(s.p.AnyFresh([]time.Time{
		s.now.Add(-2 * time.Hour),
		s.now.Add(-45 * time.Minute),
	}, s.now))
}

func (s *FreshnessSuite) TestAnyFresh_Empty() {
	s.False(s.p.AnyFresh(nil, s.now))
	s.False(s.p.AnyFresh([]time.Time{{}}, s.now))
}

func TestFreshnessSuite(t *testing.T) {
	suite.Run(t, new(FreshnessSuite))
}
