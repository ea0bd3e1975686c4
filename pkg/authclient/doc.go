// Package authclient is the client side of the session subsystem: it holds
// the current token, decides when it is stale, coordinates renewal so that
// any number of concurrent callers share a single in-flight refresh, and
// wraps outbound authenticated requests with a single refresh-and-retry
// cycle on authorization failure.
//
// The refresh coordinator is the correctness core: refresh is
// idempotent-by-coordination. N concurrent Refresh calls cause exactly one
// network exchange, and all N callers observe the same resolution. On a
// failed refresh the session is terminated, not left stale: the store is
// cleared and every waiter is rejected.
package authclient
