// Package store provides the scoped durable key-value capability the sync
// layer persists through.
//
// Values are opaque byte slices addressed by a namespace and a key. The
// outbound queue and the sync marker are the two users:
//
//	st := store.NewFileStore("/var/lib/syncwire")
//	if err := st.Set(ctx, "outbound", "queue", snapshot); err != nil {
//	    return err
//	}
//	data, err := st.Get(ctx, "outbound", "queue")
//	if errors.Is(err, store.ErrNotFound) {
//	    // nothing persisted yet
//	}
//
// Backends for Redis, PostgreSQL and Firestore live in sub-packages.
package store
