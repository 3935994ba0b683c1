// Package app contains the core application logic. It wires a flow file, an
// editing session, the validator and the optional outer surfaces (submission
// backend, live editor link, health and metrics server) into one run,
// decoupled from any specific entrypoint like a CLI.
package app
