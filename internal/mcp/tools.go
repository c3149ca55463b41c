package mcp

import "github.com/mark3labs/mcp-go/mcp"

// diagnoseTool defines the diagnose MCP tool.
var diagnoseTool = mcp.NewTool("diagnose",
	mcp.WithDescription("Run a full diagnostic session for a symptom description. Returns the reviewed diagnosis."),
	mcp.WithString("symptoms",
		mcp.Required(),
		mcp.Description("Free-text description of the patient's symptoms"),
	),
	mcp.WithString("model",
		mcp.Description("Name of the configured model to draft with (default model if omitted)"),
	),
)

// searchDiseasesTool defines the search_diseases MCP tool.
var searchDiseasesTool = mcp.NewTool("search_diseases",
	mcp.WithDescription("Search the disease knowledge base by symptoms. Returns ranked candidate diseases."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Symptom text to search for"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of candidates to return (default 5)"),
	),
)

// getDiseaseTool defines the get_disease MCP tool.
var getDiseaseTool = mcp.NewTool("get_disease",
	mcp.WithDescription("Get the knowledge graph facts for a disease: cause, departments and complications."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Exact disease name"),
	),
)
