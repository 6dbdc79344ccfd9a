// Package resilience provides the fault-tolerance primitives used by the
// provider failover engine.
//
// This package includes:
//   - HealthRegistry: per-key consecutive-failure tracking with a circuit
//     that opens after a threshold and a scoring penalty derived from it
//   - Retry: bounded retries with exponential, linear or per-error backoff
//
// The registry does not gate calls itself; callers ask it for a penalty and
// decide how to rank or skip a key:
//
//	reg := resilience.NewHealthRegistry[string]()
//	policy := resilience.DefaultHealthPolicy()
//
//	if penalty, reason := reg.Penalty("remote", policy); reason != "" {
//	    // circuit open, skip
//	}
//	if err := call(); err != nil {
//	    reg.RecordFailure("remote", policy)
//	} else {
//	    reg.RecordSuccess("remote")
//	}
package resilience
