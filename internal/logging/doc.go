// Package logging provides file-based logging with rotation for sihmcp.
// Logs are written as JSON lines to ~/.sihmcp/logs/ for debugging and
// troubleshooting.
//
// In MCP server mode stderr output is disabled so the stdio transport
// stays clean for JSON-RPC.
package logging
