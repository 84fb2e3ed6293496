/*
Package stepsync is a shared, real-time sequencer state server.

It holds one small authoritative document (tempo, transport position, per-track
16-step patterns and parameters) that many clients view and mutate concurrently
over a websocket protocol. Every mutation is serialized through a single owner
and fanned out to all connected clients, including the one that sent it, so
every client converges on the server's state instead of trusting a local echo.
A newly connected client receives a full snapshot before any broadcast; a
client that missed frames simply reconnects and resynchronizes the same way.

The server keeps no persistent state: the document lives for the process
lifetime, and clients are the timing authority while playing. The server never
advances the playhead on its own.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/stepsync"
	)

	func main() {
		srv, err := stepsync.New(stepsync.DefaultConfig())
		if err != nil {
			log.Fatal(err)
		}
		if err := srv.Run(context.Background()); err != nil {
			log.Fatal(err)
		}
	}
*/
package stepsync
