// Package policy evaluates cancellation and refund requests against a
// business's order policy.
//
// The package has three parts:
//   - the typed policy model and its strict decoder/validator (Decode, Validate)
//   - the evaluators (Evaluator.EvaluateCancellation, Evaluator.EvaluateRefund)
//   - the pure cancellation transition (ApplyCancellation)
//
// Evaluators perform no I/O and hold no mutable state, so a single Evaluator
// may be shared across goroutines. A malformed or missing policy, a missing
// order, or an unexpected failure during evaluation always yields a PENDING
// decision that routes the request to manual review.
package policy
