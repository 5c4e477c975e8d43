// Package batch runs capture units against the remote rendering service.
//
// An Orchestrator splits units into API-sized chunks, admits each chunk
// through a bounded gate, submits it, polls the resulting job and persists
// screenshots as soon as they reach a terminal state. Every transition is
// reported through an events.Emitter.
package batch
