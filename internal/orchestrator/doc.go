// Package orchestrator runs restoration jobs in the background. It records
// submissions in the job store, drives each job through its lifecycle with
// the execution pipeline, and serves the status, download, list and delete
// queries against the store and durable artifact storage.
package orchestrator
