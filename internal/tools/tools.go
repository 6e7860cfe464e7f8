// Package tools holds the built-in tools served by gasbox.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/flemzord/gasbox/internal/capability"
	"github.com/flemzord/gasbox/internal/tool"
)

// Tool names.
const (
	RunScriptName   = "run_gas_with_gas-fakes"
	ExplanationName = "explanation_add_gas_to_mcp"
	SearchFilesName = "search_files_by_name"
	ReadFileName    = "read_file"
	WriteFileName   = "write_file"
)

// Builtins returns the built-in tools in registration order.
func Builtins() []tool.Tool {
	return []tool.Tool{
		newRunScriptTool(),
		newExplanationTool(),
		newSearchFilesTool(),
		newReadFileTool(),
		newWriteFileTool(),
	}
}

// Register registers the built-ins followed by extra on reg.
func Register(reg *tool.Registry, extra ...tool.Tool) error {
	for _, t := range append(Builtins(), extra...) {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}
	return nil
}

// descriptorProperties is the JSON Schema shared by every tool that takes a
// capability descriptor.
const descriptorProperties = `{
	"sandbox": {
		"type": "boolean",
		"description": "The default is true. When this is true, the script is run with the sandbox. When this is false, the script is run without the sandbox."
	},
	"whitelistItems": {
		"type": "array",
		"items": {"type": "string", "description": "File ID of file on Google Drive"},
		"description": "Use this to access the existing files on Google Drive. Provide the file IDs of the files on Google Drive as an array. When this is used, the property \"sandbox\" is required to be true. The default is no items in an array."
	}
}`

// descriptorArgSchema is the schema of the gas_fakes_args object.
var descriptorArgSchema = `{"type": "object", "properties": ` + descriptorProperties + `}`

// invalidArgs reports a decoding problem the schema did not catch.
func invalidArgs(err error) tool.Output {
	return tool.Output{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}
}

// marshalOutput encodes v as the tool's text content.
func marshalOutput(v any) (tool.Output, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return tool.Output{}, fmt.Errorf("marshal result: %w", err)
	}
	return tool.Output{Content: string(data)}, nil
}

// descriptorOf builds a descriptor from the caller's optional fields.
func descriptorOf(sandbox *bool, whitelist []string) (capability.Descriptor, error) {
	return capability.New(capability.Raw{Sandbox: sandbox, WhitelistItems: whitelist})
}
