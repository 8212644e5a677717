// Package errors defines the failure taxonomy shared by every container package.
//
// # Classes
//
// Each error belongs to one of three handling classes:
//
//   - Transient: lock waits that timed out, a busy session, an unavailable data store.
//     Retrying later may succeed.
//   - Invalid: the caller asked for something that does not exist or is no longer
//     valid, such as a removed session or an unbound directory name.
//   - Fatal: startup cannot proceed (duplicate definitions, dependency cycles,
//     a panicking component).
//
// # Usage
//
// Return a sentinel, or wrap one with context:
//
//	if !ok {
//	    return errors.Newf(errors.ErrNoSuchSession, "session %s", key)
//	}
//	return errors.WrapFatal(err, "SingletonManager", "InitializeAll", "construct PrimaryCache")
//
// Callers branch with errors.Is on the sentinel or with IsTransient/IsInvalid/IsFatal
// on the class. Wrapping never hides the sentinel.
package errors
