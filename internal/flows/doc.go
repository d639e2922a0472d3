// Package flows defines the demo graphs served by the CLI, the HTTP API and the
// MCP server: a linear portfolio calculation, a currency conversion that
// branches on an enum, a stock quote report and two conversational agents.
package flows
