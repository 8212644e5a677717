// Package retry provides exponential backoff for transient failures.
//
// By default only errors classified transient by the errors package are retried,
// so a data store that is briefly unavailable is retried while a missing record
// or a revision conflict surfaces at once.
//
//	rec, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (datastore.Record, error) {
//	    return store.Find(ctx, "Book", id)
//	})
package retry
