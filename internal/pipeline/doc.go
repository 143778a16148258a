// Package pipeline implements the execution unit shared by the background
// orchestrator and the synchronous handler: stage the input into a private
// workspace, run the compute engine behind a single-slot admission gate,
// locate the produced artifact and hand it to a sink. The workspace is
// released on every exit path, including panics raised by the engine.
package pipeline
