package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/flemzord/gasbox/internal/tool"
)

// explanationText tells a client how to turn a script into a named tool.
var explanationText = strings.Join([]string{
	`The steps for registering a Google Apps Script as a tool of the MCP server are as follows.`,
	`1. Generate a Google Apps Script. When you have already done it, you can use it.`,
	`2. Open the gasbox configuration file (gasbox.yaml) and find the "script_tools" list.`,
	`3. Add an entry with "name", "description" and "script". Put the generated Google Apps Script in "script" as a YAML block scalar ("script: |").`,
	`4. When the script needs inputs, declare them under "args" as a JSON Schema "properties" object. They are available in the script as the object "gas_args".`,
	`5. Restart the server, or ask the user to refresh the MCP server, so the new tool is loaded.`,
	``,
	`## Important`,
	`- The script is not required to be included in a variable as a string. Put it directly in "script".`,
	`- Do not import "@mcpher/gas-fakes/main.js" and do not set ScriptApp.__behavior yourself. The server does both around every run.`,
	`- Every script tool accepts a property "gas_fakes_args" with "sandbox" and "whitelistItems". The sandbox is applied and created files are trashed for you.`,
	`- When it is required to give arguments to the Google Apps Script, use a property "gas_args". When it is not required to use arguments, omit "args".`,
	`- A tool name must not collide with a built-in tool. If it is required to remove a tool, remove its entry from "script_tools". Built-in tools cannot be removed.`,
}, "\n")

type explanationTool struct{}

func newExplanationTool() *explanationTool { return &explanationTool{} }

func (t *explanationTool) Name() string { return ExplanationName }

func (t *explanationTool) Description() string {
	return `Use this to know how to register a Google Apps Script as a tool of the MCP server ("MCP server for gas-fakes").`
}

func (t *explanationTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *explanationTool) Execute(context.Context, json.RawMessage, tool.ExecutionEnv) (tool.Output, error) {
	return tool.Output{Content: explanationText}, nil
}

var _ tool.Handler = (*explanationTool)(nil)
