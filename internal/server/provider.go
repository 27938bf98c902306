// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import "context"

// ToolClient is the protocol surface an evaluation needs from a live server.
// *Client implements it; tests substitute mock implementations.
type ToolClient interface {
	// ListTools retrieves the list of available tools from the MCP server.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// CallTool executes an MCP tool with the given arguments.
	CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error)

	// Close closes the connection to the MCP server.
	Close() error
}
