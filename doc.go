// Package wormhole provides a message relay engine for linked chat channels.
//
// Channels ("wormholes") are bound to named relay groups ("beams"). A message
// posted in one wormhole is rewritten for, and delivered to, every other
// active wormhole of its beam. The engine remembers which copies it produced
// for the beam's timeout window so that edits and deletions of the original
// are replayed to the copies.
//
// Key features:
//   - Per-beam policy: active gate, anonymity prefix, replace mode, retention window, length limit
//   - ((nickname)) tags rendered as native mentions in the tagged user's home channel only
//   - Concurrent fan-out with per-destination failure isolation and a failure log
//   - Per-channel serial event lanes preserving arrival order
//   - Composable store pattern with multiple backends (Memory, SQLite, Postgres, MongoDB, Redis)
//
// Quick start:
//
//	r, err := wormhole.New(
//	    wormhole.WithStore(memory.New()),
//	    wormhole.WithTransport(gateway),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	b, _ := r.Beams().Create(ctx, "general", adminID)
//	r.Wormholes().Add(ctx, b.Name, "channel-a")
//	r.Wormholes().Add(ctx, b.Name, "channel-b")
//
//	r.Start(ctx)
//	r.Submit(ctx, wormhole.Event{Kind: wormhole.EventMessage, Message: msg})
package wormhole
