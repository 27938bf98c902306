// Package server manages the lifecycle of evaluation target servers.
//
// A target is described by a config.ServerConfig: either a launchable
// artifact on disk (stdio transport, or http transport with a pre-launch
// step) or an already-running HTTP endpoint. This package classifies the
// artifact into a runtime, builds the launch command, starts and
// readiness-checks harness-owned processes, wraps the MCP protocol client,
// and deduplicates live connections across concurrent evaluations.
package server

import (
	"encoding/json"
	"time"
)

// ServerType is the runtime category needed to launch a server artifact.
type ServerType string

const (
	// ServerTypeCSharpScript is a C# script launched via dotnet-script (.csx).
	ServerTypeCSharpScript ServerType = "csharp-script"
	// ServerTypeNode is a JavaScript server launched via node (.js).
	ServerTypeNode ServerType = "node"
	// ServerTypeExecutable is a native binary launched directly (.exe).
	ServerTypeExecutable ServerType = "executable"
	// ServerTypePython is a Python server launched via python (.py).
	ServerTypePython ServerType = "python"
	// ServerTypeUnknown is anything the detector could not classify.
	ServerTypeUnknown ServerType = "unknown"
)

// TransportKind is the channel used to reach a server.
type TransportKind string

const (
	// TransportStdio talks to a child process over its stdin/stdout pipes.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP talks to a server over a streamable HTTP endpoint.
	TransportHTTP TransportKind = "http"
)

// ToolDefinition represents an MCP tool advertised by a server.
type ToolDefinition struct {
	// Name is the unique identifier for this tool
	Name string `json:"name"`

	// Description explains what the tool does
	Description string `json:"description"`

	// InputSchema defines the expected input parameters using JSON Schema
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolCallRequest represents a request to execute an MCP tool.
type ToolCallRequest struct {
	// Name is the tool to execute
	Name string `json:"name"`

	// Arguments contains the input parameters for the tool
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResponse represents the result of an MCP tool execution.
type ToolCallResponse struct {
	// Content contains the tool's output
	Content []ContentItem `json:"content"`

	// IsError indicates if the tool execution failed
	IsError bool `json:"isError,omitempty"`
}

// ContentItem represents a piece of content in an MCP response.
type ContentItem struct {
	// Type is the content type (text, image, resource)
	Type string `json:"type"`

	// Text is the text content (for type="text")
	Text string `json:"text,omitempty"`

	// Data is the base64-encoded data (for type="image")
	Data string `json:"data,omitempty"`

	// MimeType is the MIME type for binary content
	MimeType string `json:"mimeType,omitempty"`
}

// ProcessHandle is the view of a server child process needed for teardown.
// Implemented by *Process for harness-launched servers; tests substitute
// fakes.
type ProcessHandle interface {
	// Exited reports whether the process has terminated.
	Exited() bool

	// Stop terminates the process, SIGTERM first and SIGKILL once the
	// grace period elapses. Safe to call on an already-exited process.
	Stop(grace time.Duration) error
}

// TransportHandle describes how to reach a server: a command to spawn for
// stdio transports, or an HTTP endpoint for http transports.
type TransportHandle struct {
	// Kind is the transport this handle was built for.
	Kind TransportKind

	// Command and Args describe the child the protocol client spawns for
	// stdio transports. The client library launches it lazily on first use.
	Command string
	Args    []string

	// Env are extra KEY=VALUE pairs for the spawned child.
	Env []string

	// URL is the endpoint for http transports.
	URL string

	// Process is set when the harness launched the server itself (http
	// transport with a path). Whoever holds the handle owns teardown.
	Process ProcessHandle
}
