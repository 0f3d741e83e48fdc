// Package lifecycle drives queues through their wall-clock transitions:
// a notification broadcast at notify_dt, planned -> active at start_dt
// and active -> archived at end_dt.
//
// Timers live only in memory; the queue rows in the store are the source of
// truth. Reconcile rebuilds every timer from the store and fires overdue
// events inline, so a restart (or a missed timer) never loses a transition.
// Each fire ends in a guarded conditional update, which makes re-firing a
// no-op; a periodic sweep re-runs Reconcile as a safety net.
package lifecycle
