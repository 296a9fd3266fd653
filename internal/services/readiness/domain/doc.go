// Package domain holds the pure readiness model: check engine, blocker and
// stage classifiers, notification fingerprint, and recommendation outcomes.
//
// Nothing in this package performs I/O. Gatherers produce an Observation,
// Assess turns it into an immutable ProjectSnapshot, and the service decides
// what to persist.
package domain
