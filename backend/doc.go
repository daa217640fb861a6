// Package backend hosts the agent's tool sources.
//
// A [Backend] serves a set of tools under its name; the [Registry] keeps
// backends in registration order and the [Aggregator] routes calls by
// "backend:tool" ID:
//
//	registry := backend.NewRegistry()
//	registry.Register(tasksBackend)
//
//	agg := backend.NewAggregator(registry)
//	tools, _ := agg.ListAllTools(ctx)
//	result, _ := agg.Execute(ctx, "tasks:create_task", args)
//
// The task catalog lives in a local backend (see backend/local); the MCP
// server and the HTTP agent endpoint both execute through the aggregator.
package backend
