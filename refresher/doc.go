// Package refresher keeps remote VPN data fresh.
//
// It contains the services that periodically pull data from the API and
// push updates to the rest of the application:
//
//   - ServerListRefresher: fixed-interval server list polling with a
//     staleness gate, so observers only ever see strictly newer snapshots
//   - ClientConfigRefresher: expiry-driven client configuration refresh
//   - Scheduler: the run-at task scheduler both of the above (and the
//     reconnector and port forwarder) schedule their work on
//   - BackoffPolicy: randomized exponential delays for retrying failed
//     refresh attempts
//
// # Concurrency
//
// Each ServerListRefresher owns a single notification goroutine. Fetches
// run concurrently, but every completion is marshaled back onto that
// goroutine before state is touched or observers are called, so observer
// callbacks are serialized and ordered. Completions apply in arrival
// order, which may differ from issue order; the strictly-greater
// timestamp comparison keeps reordered completions from regressing the
// held snapshot.
package refresher
