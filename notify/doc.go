// Package notify delivers task notifications to chat webhooks and email.
//
// Webhook delivery retries with exponential backoff behind a per-endpoint
// circuit breaker. Email bodies are rendered from text templates; sending
// goes through the [Sender] interface so tests and alternative relays can
// replace SMTP.
package notify
