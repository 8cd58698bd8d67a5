// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package collector

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/playtrack/playtrack/internal/source"
)

// stubInfoSource returns a scripted sequence of player counts.
type stubInfoSource struct {
	mu     sync.Mutex
	counts []int
	errs   []bool
	pos    int
}

func (s *stubInfoSource) Info(context.Context) (*source.ServerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pos
	if i >= len(s.counts) {
		i = len(s.counts) - 1
	}
	s.pos++
	if i < len(s.errs) && s.errs[i] {
		return nil, fmt.Errorf("%w: scripted failure", source.ErrUnavailable)
	}
	return &source.ServerInfo{Players: s.counts[i], MaxPlayers: 100}, nil
}

// onlineMemorySink records online count inserts.
type onlineMemorySink struct {
	mu      sync.Mutex
	inserts []int
}

func (s *onlineMemorySink) InsertOnlineCount(_ context.Context, count int, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, count)
	return nil
}

func (s *onlineMemorySink) all() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.inserts...)
}

func TestOnlineCountCollectorRecordsOnChange(t *testing.T) {
	t.Parallel()

	src := &stubInfoSource{counts: []int{10, 10, 12, 12, 9}}
	sink := &onlineMemorySink{}
	c := NewOnlineCountCollector(src, sink, time.Hour, time.Second)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c.sample(ctx)
	}

	want := []int{10, 12, 9}
	got := sink.all()
	if len(got) != len(want) {
		t.Fatalf("inserts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("insert %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestOnlineCountCollectorSkipsFailedQueries(t *testing.T) {
	t.Parallel()

	src := &stubInfoSource{counts: []int{10, 0, 10}, errs: []bool{false, true, false}}
	sink := &onlineMemorySink{}
	c := NewOnlineCountCollector(src, sink, time.Hour, time.Second)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c.sample(ctx)
	}

	// The failed query must not be recorded as a zero count, and the
	// unchanged count after it must not produce a duplicate row.
	if got := sink.all(); len(got) != 1 || got[0] != 10 {
		t.Errorf("inserts = %v, want single 10", got)
	}
}
