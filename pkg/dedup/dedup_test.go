package dedup_test

import (
	"testing"
	"time"

	"github.com/brokercore/brokercore/pkg/dedup"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/stretchr/testify/suite"
)

type DedupSuite struct {
	suite.Suite
}

func (s *DedupSuite) newCache(cfg dedup.Config) *dedup.Cache {
	c, err := dedup.New(cfg)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Dispose() })
	return c
}

func (s *DedupSuite) TestAddThenIsDuplicate() {
	c := s.newCache(dedup.Config{MaxSize: 10, Window: time.Minute})

	dup, err := c.IsDuplicate("h1")
	s.NoError(err)
	s.False(dup)

	s.NoError(c.Add("h1", time.Minute))

	dup, err = c.IsDuplicate("h1")
	s.NoError(err)
	s.True(dup)
}

func (s *DedupSuite) TestEntryExpiresAfterTTL() {
	c := s.newCache(dedup.Config{MaxSize: 10, Window: time.Minute})
	s.NoError(c.Add("h1", 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	dup, err := c.IsDuplicate("h1")
	s.NoError(err)
	s.False(dup)
}

func (s *DedupSuite) TestRejectsEmptyHash() {
	c := s.newCache(dedup.Config{MaxSize: 10, Window: time.Minute})

	_, err := c.IsDuplicate("   ")
	s.Error(err)

	err = c.Add("", time.Minute)
	s.Error(err)
}

func (s *DedupSuite) TestEvictsEarliestExpiryFirstWhenOverCapacity() {
	c := s.newCache(dedup.Config{MaxSize: 2, Window: time.Minute})

	s.NoError(c.Add("short", 10*time.Millisecond))
	s.NoError(c.Add("long", time.Hour))
	s.NoError(c.Add("longer", time.Hour))

	s.Equal(2, c.Metrics().Size)
	dup, _ := c.IsDuplicate("short")
	s.False(dup)
	dup, _ = c.IsDuplicate("long")
	s.True(dup)
}

func (s *DedupSuite) TestMetricsTrackHitsAndMisses() {
	c := s.newCache(dedup.Config{MaxSize: 10, Window: time.Minute})
	s.NoError(c.Add("h1", time.Minute))

	_, _ = c.IsDuplicate("h1")
	_, _ = c.IsDuplicate("missing")

	m := c.Metrics()
	s.EqualValues(1, m.Hits)
	s.EqualValues(1, m.Misses)
	s.EqualValues(1, m.DuplicatesDetected)
}

func (s *DedupSuite) TestDisposeRejectsFurtherCalls() {
	c := s.newCache(dedup.Config{MaxSize: 10, Window: time.Minute})
	s.NoError(c.Dispose())

	_, err := c.IsDuplicate("h1")
	s.Error(err)

	err = c.Add("h1", time.Minute)
	s.Error(err)
}

func (s *DedupSuite) TestConfigValidation() {
	_, err := dedup.New(dedup.Config{MaxSize: 0, Window: time.Minute})
	s.Error(err)

	_, err = dedup.New(dedup.Config{MaxSize: 10, Window: 25 * time.Hour})
	s.Error(err)
}

func TestDedupSuite(t *testing.T) {
	suite.Run(t, new(DedupSuite))
}

func TestContentHashStrategy_IsStable(t *testing.T) {
	strategy := dedup.ContentHashStrategy()
	env := envelope.New("order.created", []byte(`{"id":1}`))

	h1, err := strategy(env)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := strategy(env)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %q and %q", h1, h2)
	}
}

func TestMessageIDStrategy_FailsWhenMissing(t *testing.T) {
	strategy := dedup.MessageIDStrategy()
	env := envelope.New("order.created", []byte("x"))

	if _, err := strategy(env); err == nil {
		t.Fatal("expected error for missing message id")
	}

	env.MessageID = "m1"
	h, err := strategy(env)
	if err != nil {
		t.Fatal(err)
	}
	if h != "m1" {
		t.Fatalf("expected m1, got %q", h)
	}
}
