package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bft-labs/syncwire/pkg/bus"
	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/syncer"
)

const maxFeedLine = 1 << 20

// feedChanges reads newline-delimited EntityChange JSON from r and emits each
// as a local change. Blank lines are skipped; malformed lines are logged and
// skipped. It returns the number of changes emitted.
func feedChanges(ctx context.Context, r io.Reader, b bus.Bus, logger log.Logger) (int, error) {
	logger = log.OrNoop(logger)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFeedLine)

	n := 0
	line := 0
	for sc.Scan() {
		line++
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var change syncer.EntityChange
		if err := json.Unmarshal(raw, &change); err != nil {
			logger.Warn("skipping malformed change", log.Int("line", line), log.Err(err))
			continue
		}
		change.Origin = syncer.OriginLocal
		b.Emit(ctx, syncer.EventEntityChanged, change)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read changes: %w", err)
	}
	return n, nil
}
