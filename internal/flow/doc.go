// Package flow is the canonical in-memory model of an email-drip automation:
// a directed graph of typed steps (start, sendEmail, wait, condition, end)
// connected by edges that leave a node through a named output handle.
//
// # Responsibilities
//
// The Graph owns node and edge storage keyed by id, preserves insertion order
// so that every derived output (validation messages, exports) is
// deterministic, and offers the query primitives the rule engine, the
// validator and the duration calculator are written against.
//
// The Graph never judges whether an edge makes sense. It only refuses
// operations that would corrupt its own bookkeeping (duplicate ids, edges to
// unknown nodes, deleting the entry point); those are reported as
// *StructuralError values wrapping ErrStructural. Logical correctness is the
// job of the rules and validate packages.
//
// # Node configuration
//
// Each node kind has its own configuration struct (SendEmailConfig,
// WaitConfig, ConditionConfig, StartConfig, EndConfig) behind the Config
// interface. UpdateNodeConfig applies a shallow ConfigPatch keyed by the
// configuration's JSON field names, mirroring how the inspector form patches
// a node.
//
// # Thread-Safety
//
// A Graph is owned by a single editing session and is not safe for
// concurrent use.
package flow
