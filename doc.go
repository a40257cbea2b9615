// SPDX-License-Identifier: GPL-3.0-or-later

// Package loopchan provides event-loop driven channels and an in-process
// transport connecting them.
//
// # Core Abstraction
//
// A [Channel] is one endpoint of a bidirectional transport. Its lifecycle
// moves forward through [StateOpen], [StateBound], [StateConnected], and
// [StateClosed], and every state change runs on the single goroutine of the
// [*SingleThreadEventLoop] the channel is registered with.
//
// Loop affinity travels in the context: the loop passes each [Task] a context
// identifying itself, and channel operations invoked with that context run
// synchronously. Operations invoked with any other context are enqueued on
// the loop and report their outcome through the returned [*Future]. The
// core never blocks waiting for a [*Future].
//
// # Local Transport
//
// A [*LocalServerChannel] binds a [LocalAddress] in the shared [*Registry].
// A [*LocalChannel] connecting to that address causes the server to spawn a
// child [*LocalChannel] linked to the client as its peer. Flushing a channel
// moves its queued outbound messages to the peer in a single task running on
// the peer loop, so the peer observes whole batches in order.
//
// Closing a channel closes its peer asynchronously. Shutting down a loop
// closes every channel still registered with it.
//
// # Pipeline
//
// Each channel owns a [*Pipeline] of handlers. Inbound events travel from
// the head to the tail through [InboundHandler] stages; outbound messages
// travel from the tail to the head through [OutboundHandler] stages and
// land in the outbound queue drained by flush. Available stages include
// [*LoggingHandler], [*Base64Encoder], [*Base64Decoder], and the content
// encoder of the httpcodec subpackage.
//
// # Bootstrap
//
// Blocking bootstrap steps implement [Func] and compose with [Compose2],
// [Compose3], and [Compose4]:
//   - [NewLocalChannelFunc], [NewLocalServerChannelFunc]: create channels
//   - [RegisterFunc]: registers with a loop chosen by a [LoopChooser]
//   - [BindFunc]: binds a server
//   - [ConnectFunc]: connects a client
//   - [CancelWatchFunc]: closes the channel when the context is done
//
// Steps close the channel they received when they fail.
//
// # Observability
//
// All components support structured logging via [SLogger] (compatible with
// [log/slog]). By default, logging is disabled. Lifecycle events (registerDone,
// bindDone, connectStart/connectDone, closeDone, eventLoopShutdownStart/Done)
// are emitted at [slog.LevelInfo]; per-message events (writeDone, flushDone,
// and the [*LoggingHandler] events) at [slog.LevelDebug].
//
// Events share the channelID, localAddr, remoteAddr, and protocol fields.
// Completion events (*Done) additionally include t0, t, err, and errClass,
// where errClass is computed by the configured [ErrClassifier].
package loopchan
