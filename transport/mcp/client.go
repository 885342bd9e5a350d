package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/townlet/townlet-server/town/registry"
	"github.com/townlet/townlet-server/town/service"
)

// Client is a thin MCP client that proxies to the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools.
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Townlet Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Townlet - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Towns are shared 2D spaces where players move around, form conversation
areas when co-located, and optionally sync their Spotify playback.

AVAILABLE TOOLS:
- list_towns: List publicly visible towns with occupancy
- create_town: Create a new town (returns the one-time update password)
- join_town: Join a town as a named player (returns session + video tokens)
- update_town: Rename or re-list a town (requires the update password)
- delete_town: Destroy a town (requires the update password)

The session token returned by join_town authenticates the websocket
connection at /ws?town=<townID>&token=<sessionToken>.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools.
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_towns",
		Description: "List all publicly listed towns",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTowns)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_town",
		Description: "Create a new town",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"friendly_name": map[string]interface{}{
					"type":        "string",
					"description": "Display name for the town",
				},
				"is_publicly_listed": map[string]interface{}{
					"type":        "boolean",
					"description": "Whether the town appears in public listings",
				},
			},
			Required: []string{"friendly_name"},
		},
	}, c.handleCreateTown)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_town",
		Description: "Join a town as a new player",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"town_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the town to join",
				},
				"user_name": map[string]interface{}{
					"type":        "string",
					"description": "Display name for the joining player",
				},
			},
			Required: []string{"town_id", "user_name"},
		},
	}, c.handleJoinTown)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "update_town",
		Description: "Update a town's name or visibility",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"town_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the town to update",
				},
				"password": map[string]interface{}{
					"type":        "string",
					"description": "Town update password",
				},
				"friendly_name": map[string]interface{}{
					"type":        "string",
					"description": "New display name (optional)",
				},
				"is_publicly_listed": map[string]interface{}{
					"type":        "boolean",
					"description": "New listing visibility (optional)",
				},
			},
			Required: []string{"town_id", "password"},
		},
	}, c.handleUpdateTown)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_town",
		Description: "Delete a town, disconnecting all players",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"town_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the town to delete",
				},
				"password": map[string]interface{}{
					"type":        "string",
					"description": "Town update password",
				},
			},
			Required: []string{"town_id", "password"},
		},
	}, c.handleDeleteTown)
}

// GetMCPServer returns the underlying MCP server for serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall performs one REST request and unwraps the response envelope.
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		IsOK     bool            `json:"isOK"`
		Response json.RawMessage `json:"response"`
		Message  string          `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}
	if !env.IsOK {
		if env.Message != "" {
			return fmt.Errorf("%s", env.Message)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil && env.Response != nil {
		return json.Unmarshal(env.Response, result)
	}
	return nil
}

// Tool handlers

func (c *Client) handleListTowns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Towns []registry.TownListing `json:"towns"`
	}

	if err := c.apiCall("GET", "/api/towns", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Listed Towns (%d):\n\n", len(response.Towns))
	for _, t := range response.Towns {
		result += fmt.Sprintf("- %s (%s): %d/%d players\n",
			t.FriendlyName, t.TownID, t.CurrentOccupancy, t.MaximumOccupancy)
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleCreateTown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	friendlyName, _ := args["friendly_name"].(string)
	isListed, _ := args["is_publicly_listed"].(bool)

	body := map[string]interface{}{
		"friendlyName":     friendlyName,
		"isPubliclyListed": isListed,
	}

	var created service.TownCreateResponse
	if err := c.apiCall("POST", "/api/towns", body, &created); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created town: %s\nUpdate password (shown once): %s\n",
		created.TownID, created.TownUpdatePassword)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleJoinTown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	townID, _ := args["town_id"].(string)
	userName, _ := args["user_name"].(string)

	body := map[string]interface{}{
		"townID":   townID,
		"userName": userName,
	}

	var joined service.TownJoinResponse
	if err := c.apiCall("POST", "/api/sessions", body, &joined); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Joined town %q as player %s\nSession token: %s\nCurrent players: %d\nConversation areas: %d\n",
		joined.FriendlyName, joined.PlayerID, joined.SessionToken,
		len(joined.CurrentPlayers), len(joined.ConversationAreas))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleUpdateTown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	townID, _ := args["town_id"].(string)
	password, _ := args["password"].(string)

	body := map[string]interface{}{
		"townUpdatePassword": password,
	}
	if name, ok := args["friendly_name"].(string); ok && name != "" {
		body["friendlyName"] = name
	}
	if listed, ok := args["is_publicly_listed"].(bool); ok {
		body["isPubliclyListed"] = listed
	}

	if err := c.apiCall("PATCH", fmt.Sprintf("/api/towns/%s", townID), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Town %s updated", townID)), nil
}

func (c *Client) handleDeleteTown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	townID, _ := args["town_id"].(string)
	password, _ := args["password"].(string)

	body := map[string]interface{}{
		"townUpdatePassword": password,
	}

	if err := c.apiCall("DELETE", fmt.Sprintf("/api/towns/%s", townID), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Town %s deleted", townID)), nil
}
