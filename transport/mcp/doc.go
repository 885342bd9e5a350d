// Package mcp provides a Model Context Protocol surface for the town
// server, letting AI agents browse, create, and join towns.
//
// The package is a thin client: every tool call proxies to the REST API
// rather than touching the registry directly, so the MCP surface can run
// in-process or as a separate stdio process against a remote server and
// behaves identically either way.
package mcp
