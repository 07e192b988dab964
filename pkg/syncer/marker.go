package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/store"
)

const (
	markerNamespace = "sync"
	markerKey       = "marker"
	markerTimeout   = 5 * time.Second
)

func loadMarker(ctx context.Context, st store.Store) (int64, error) {
	if st == nil {
		return 0, nil
	}
	raw, err := st.Get(ctx, markerNamespace, markerKey)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	marker, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse marker %q: %w", raw, err)
	}
	return marker, nil
}

// advanceMarker records ts when it is newer than the current marker.
func (s *Syncer) advanceMarker(ctx context.Context, ts int64) {
	s.mu.Lock()
	if ts <= s.marker {
		s.mu.Unlock()
		return
	}
	s.marker = ts
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markerTimeout)
	defer cancel()
	if err := s.store.Set(ctx, markerNamespace, markerKey, []byte(strconv.FormatInt(ts, 10))); err != nil {
		s.logger.Warn("persist sync marker", log.Int64("marker", ts), log.Err(err))
	}
}
