package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/flemzord/gasbox/internal/tool"
)

// ErrEmptyScript is returned when gas_script holds only whitespace.
var ErrEmptyScript = errors.New("gas_script is empty")

// runScriptTool runs caller-provided Apps Script source in the fake
// runtime as a subprocess.
type runScriptTool struct{}

func newRunScriptTool() *runScriptTool { return &runScriptTool{} }

func (t *runScriptTool) Name() string { return RunScriptName }

func (t *runScriptTool) Description() string {
	return strings.Join([]string{
		"Use this for the following situations.",
		"- You are required to safely execute a script of Google Apps Script in a sandbox using gas-fakes.",
		"- You are required to process tasks that cannot be achieved with other tools, and you can generate a Google Apps Script to achieve the tasks, and safely execute it in a sandbox using gas-fakes.",
		"- You are required to process tasks that cannot be achieved with other tools, and a Google Apps Script to achieve the tasks is provided from a prompt or other tools, and safely execute it in a sandbox using gas-fakes.",
	}, "\n")
}

func (t *runScriptTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"gas_script": {
				"type": "string",
				"description": "Provide a Google Apps Script. When you put the script in a function like ` + "`function sample() { script }`" + `, it is required to add ` + "`sample();`" + ` to run the function. When you directly put the script, the script can be run."
			},
			"sandbox": ` + mustProperty("sandbox") + `,
			"whitelistItems": ` + mustProperty("whitelistItems") + `
		},
		"required": ["gas_script"]
	}`)
}

type runScriptArgs struct {
	Script         string   `json:"gas_script"`
	Sandbox        *bool    `json:"sandbox,omitempty"`
	WhitelistItems []string `json:"whitelistItems,omitempty"`
}

func (t *runScriptTool) Script(args json.RawMessage) (tool.ScriptRequest, error) {
	var a runScriptArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.ScriptRequest{}, err
	}
	if strings.TrimSpace(a.Script) == "" {
		return tool.ScriptRequest{}, ErrEmptyScript
	}
	desc, err := descriptorOf(a.Sandbox, a.WhitelistItems)
	if err != nil {
		return tool.ScriptRequest{}, err
	}
	return tool.ScriptRequest{Source: a.Script, Descriptor: desc}, nil
}

// mustProperty returns one entry of descriptorProperties as raw JSON.
func mustProperty(name string) string {
	var props map[string]json.RawMessage
	if err := json.Unmarshal([]byte(descriptorProperties), &props); err != nil {
		panic(err)
	}
	p, ok := props[name]
	if !ok {
		panic("tools: unknown descriptor property " + name)
	}
	return string(p)
}

var _ tool.Scripted = (*runScriptTool)(nil)
