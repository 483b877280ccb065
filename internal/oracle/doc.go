// Package oracle provides the Ollama-backed language model client used
// by the workflow steps.
//
// The client talks to a local (or remote) Ollama server over its HTTP
// API. Transient failures are retried with a square backoff; permanent
// failures are returned to the caller, which treats them as data rather
// than aborting the workflow run.
package oracle
