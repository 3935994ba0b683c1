// Package rules decides whether a proposed connection between two nodes is
// allowed.
//
// The decision is driven by a single data-driven Table. The Engine consults
// it when the user drags a new edge; the validate package re-applies the same
// Table to every existing edge so that imported or bulk-created edges cannot
// bypass it. Keeping one table for both call sites is what stops the two
// from drifting apart.
//
// Which node kinds may feed a condition is a Policy choice. ChainedPolicy
// (the default) accepts a send-email step or another condition; StrictPolicy
// accepts only a send-email step.
package rules
