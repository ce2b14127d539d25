// Package switches owns the boolean switch entities controlled by the webhook.
//
// The Store holds one entry per configured switch, each guarded by its
// own mutex. Apply serializes read-modify-write per switch, writes the
// result through a Repository before making it visible, and never takes
// a lock shared by unrelated switches. The entry map is built once in
// NewStore and only read afterwards.
//
// The Dispatcher interprets the four webhook actions against the Store:
//
//	on      state -> on,  merge attributes, stamp last_triggered_at
//	off     state -> off, merge attributes, stamp last_triggered_at
//	toggle  state flips,  merge attributes, stamp last_triggered_at
//	status  no change, returns the current snapshot
//
// Mutating actions emit a StateChanged event while still holding the
// switch lock, so events for one switch are published in apply order.
//
// Repositories:
//   - SQLiteRepository: one row per switch in switch_states
//   - FileRepository: one JSON document replaced atomically (temp, fsync, rename)
//   - RedisRepository: one hash, one field per switch
package switches
