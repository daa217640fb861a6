// Package agent is the task assistant's front door.
//
// A [Router] sorts free-text requests into categories with keyword
// patterns. The [Agent] serves the task tools (create, update, list,
// metrics, working hours, reminders, charts, code-as-plan queries) from a
// local backend, indexes them in a searchable [Catalog], and dispatches
// requests to the query and chart planners when code generation is
// configured.
//
// [NewMCPServer] exposes the same tools over the Model Context Protocol.
package agent
