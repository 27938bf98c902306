package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Client wraps an MCP protocol connection to one evaluation target.
//
// A mutex serializes all protocol calls: stdio pipes carry one
// request/response exchange at a time and do not multiplex, so concurrent
// evaluations sharing a cached client must take turns on the wire.
type Client struct {
	// target identifies the server for logging (path or url)
	target string

	// client is the underlying MCP protocol client
	client *client.Client

	// timeout is the default timeout for tool calls
	timeout time.Duration

	// process is the child spawned by the stdio transport, if extractable
	// (for force-kill during teardown)
	process ProcessHandle

	// mu serializes protocol calls over the single connection
	mu sync.Mutex
}

// ClientConfig configures a protocol client over a transport handle.
type ClientConfig struct {
	// Handle describes how to reach the server
	Handle *TransportHandle

	// Timeout is the default timeout for tool calls (defaults to 30s)
	Timeout time.Duration
}

// NewClient constructs a protocol client over the given transport handle,
// starts it, and performs the initialize handshake. For stdio handles the
// underlying library spawns the server child as part of starting.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Handle == nil {
		return nil, fmt.Errorf("transport handle is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var (
		mcpClient *client.Client
		target    string
		err       error
	)
	switch cfg.Handle.Kind {
	case TransportStdio:
		target = cfg.Handle.Command + " " + strings.Join(cfg.Handle.Args, " ")
		mcpClient, err = client.NewStdioMCPClient(cfg.Handle.Command, cfg.Handle.Env, cfg.Handle.Args...)
	case TransportHTTP:
		target = cfg.Handle.URL
		mcpClient, err = client.NewStreamableHttpClient(cfg.Handle.URL)
	default:
		return nil, fmt.Errorf("unsupported transport handle kind %q", cfg.Handle.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	c := &Client{
		target:  target,
		client:  mcpClient,
		timeout: timeout,
		process: extractProcess(mcpClient),
	}

	if err := c.initialize(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP server: %w", err)
	}

	return c, nil
}

// extractProcess attempts to extract the underlying OS process from the MCP client.
// Uses reflection to access the stdio transport's process field.
// Returns nil if extraction fails (non-fatal - we just won't be able to force-kill).
func extractProcess(mcpClient *client.Client) ProcessHandle {
	if mcpClient == nil {
		return nil
	}

	transport := mcpClient.GetTransport()
	if transport == nil {
		return nil
	}

	// The stdio transport carries a Cmd *exec.Cmd field.
	transportVal := reflect.ValueOf(transport)
	if transportVal.Kind() == reflect.Ptr {
		transportVal = transportVal.Elem()
	}

	cmdField := transportVal.FieldByName("Cmd")
	if !cmdField.IsValid() || cmdField.IsNil() {
		return nil
	}

	if cmdField.Kind() == reflect.Ptr {
		processField := cmdField.Elem().FieldByName("Process")
		if !processField.IsValid() || processField.IsNil() {
			return nil
		}

		if proc, ok := processField.Interface().(*os.Process); ok {
			return &osProcess{proc: proc}
		}
	}

	return nil
}

// initialize sends the initialize request to the MCP server.
func (c *Client) initialize(ctx context.Context) error {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{
				// Minimal capabilities for tool usage
			},
			ClientInfo: mcp.Implementation{
				Name:    "mcp-evals",
				Version: "0.1.0",
			},
		},
	}

	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initialize request failed: %w", err)
	}

	return nil
}

// ListTools retrieves the list of available tools from the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]ToolDefinition, len(result.Tools))
	for i, tool := range result.Tools {
		// Use RawInputSchema if available, otherwise marshal InputSchema
		var schemaBytes []byte
		if len(tool.RawInputSchema) > 0 {
			schemaBytes = tool.RawInputSchema
		} else {
			toolBytes, err := tool.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool %s: %w", tool.Name, err)
			}
			var toolMap map[string]interface{}
			if err := json.Unmarshal(toolBytes, &toolMap); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool %s: %w", tool.Name, err)
			}
			if inputSchema, ok := toolMap["inputSchema"]; ok {
				schemaBytes, err = json.Marshal(inputSchema)
				if err != nil {
					return nil, fmt.Errorf("failed to marshal input schema for %s: %w", tool.Name, err)
				}
			}
		}

		tools[i] = ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaBytes,
		}
	}

	return tools, nil
}

// CallTool executes an MCP tool with the given arguments.
func (c *Client) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mcpReq := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      req.Name,
			Arguments: req.Arguments,
		},
	}

	result, err := c.client.CallTool(ctx, mcpReq)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}

	response := &ToolCallResponse{
		IsError: result.IsError,
		Content: make([]ContentItem, len(result.Content)),
	}

	for i, content := range result.Content {
		item := ContentItem{}

		if textContent, ok := mcp.AsTextContent(content); ok {
			item.Type = textContent.Type
			item.Text = textContent.Text
		} else if imageContent, ok := mcp.AsImageContent(content); ok {
			item.Type = imageContent.Type
			item.Data = imageContent.Data
			item.MimeType = imageContent.MIMEType
		} else {
			// Fallback: marshal to JSON to extract fields
			contentBytes, err := json.Marshal(content)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal content: %w", err)
			}
			var contentMap map[string]interface{}
			if err := json.Unmarshal(contentBytes, &contentMap); err != nil {
				return nil, fmt.Errorf("failed to unmarshal content: %w", err)
			}

			if contentType, ok := contentMap["type"].(string); ok {
				item.Type = contentType
			}
			if text, ok := contentMap["text"].(string); ok {
				item.Text = text
			}
			if data, ok := contentMap["data"].(string); ok {
				item.Data = data
			}
			if mimeType, ok := contentMap["mimeType"].(string); ok {
				item.MimeType = mimeType
			}
		}

		response.Content[i] = item
	}

	return response, nil
}

// Text extracts the plain-text payload of a tool response: text-typed blocks
// are joined with newlines, and non-text blocks fall back to their JSON form
// so no content is silently dropped.
func (r *ToolCallResponse) Text() string {
	var parts []string
	for _, content := range r.Content {
		switch {
		case content.Type == "text":
			if content.Text != "" {
				parts = append(parts, content.Text)
			}
		default:
			raw, err := json.Marshal(content)
			if err == nil {
				parts = append(parts, string(raw))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Ping checks if the server is still responsive.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.Ping(ctx); err != nil {
		if err == io.EOF {
			return fmt.Errorf("server connection closed")
		}
		return fmt.Errorf("ping failed: %w", err)
	}

	return nil
}

// Target returns the path or url this client is connected to.
func (c *Client) Target() string {
	return c.target
}

// Process returns the stdio child's process handle, or nil when the
// transport has no extractable process.
func (c *Client) Process() ProcessHandle {
	return c.process
}

// Close closes the connection to the MCP server. For stdio transports the
// library terminates the spawned child. Safe to call on a nil client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close MCP client: %w", err)
	}

	return nil
}

// osProcess adapts an *os.Process extracted from the stdio transport to the
// ProcessHandle interface.
type osProcess struct {
	proc *os.Process
}

// Exited reports liveness via signal 0.
func (o *osProcess) Exited() bool {
	return o.proc.Signal(syscall.Signal(0)) != nil
}

func (o *osProcess) Stop(grace time.Duration) error {
	if o.Exited() {
		return nil
	}

	_ = o.proc.Signal(syscall.SIGTERM)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if o.Exited() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	return o.proc.Kill()
}
