// Package cli provides the interactive lifedash command-line client.
//
// It wires configuration, the local cache, the remote client, the realtime
// feed and the sync engine, and runs a REPL on top of them. Changes pushed by
// the engine are printed as they arrive, so optimistic writes, server
// confirmations and rollbacks can all be watched from the terminal.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See NewApp, StartOnlineStatusWatcher and runREPL for details.
package cli
