// Package pagination provides conversation-scoped browsing of SkyFi order history.
//
// A Session is a server-held cursor over a filtered order listing. The Manager
// resolves or creates a session for each request, merges filter refinements,
// computes the target offset from the navigation input, fetches that page
// through an OrderLister and stores it in the session. Pages are kept sorted
// by offset with at most one page per offset; the set of order ids seen is
// folded in incrementally on every fetch.
//
// Example usage:
//
//	manager := pagination.NewManager(skyfiClient, pagination.NewMemoryStore(time.Hour), pagination.DefaultConfig())
//	result, err := manager.ListOrders(ctx, conversationID, pagination.Request{Status: "completed", Limit: 20})
//	next, err := manager.ListOrders(ctx, conversationID, pagination.Request{SessionID: result.SessionID, Action: pagination.ActionNext})
//
// Navigation resolves in this order:
//   - action: next, previous, first or current, relative to the last fetched page
//   - page: 1-based page number, offset (page-1) × limit
//   - offset: used verbatim
//   - none: offset 0 for new sessions and after a filter change, otherwise the last fetched page
//
// Sessions live in a Store. MemoryStore keeps them in process with optional
// idle eviction; RedisStore shares them between gateway instances.
package pagination
