// Package otpengine provides the OTP challenge and abuse-control engine used
// by the marketplace backend: one-time codes for account registration and
// password reset, request cooldowns, attempt caps, and temporary lockouts,
// all backed by a shared Redis TTL store.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from any number of request-handling goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// otpengine is the public surface. It exposes [Engine], [Builder], [Config],
// sentinel errors, and value types (RequestResult, SubmitResult, UserRecord).
// Code generation lives under internal/ and is never exported. The HTTP
// layer, the document database, and mail delivery are collaborators reached
// through the [UserProvider] and [Notifier] interfaces — this package never
// renders a response or an email body.
//
// # What this package must NOT do
//
//   - Expose Redis clients, key layouts, or attempt counters in its public API.
//   - Interpret a Redis failure as "no lock present" or "no prior attempts";
//     every security check fails closed.
//   - Perform multi-step read/compute/write sequences against shared counters:
//     increment-and-compare is always a single atomic INCR or an optimistic
//     WATCH transaction.
package otpengine
