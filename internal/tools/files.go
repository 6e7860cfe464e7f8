package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/flemzord/gasbox/internal/tool"
)

// ErrNoTarget is returned by write_file when neither fileId nor filename is set.
var ErrNoTarget = errors.New("either fileId or filename is required")

var searchSchema = `{
	"type": "object",
	"properties": {
		"gas_fakes_args": ` + descriptorArgSchema + `,
		"gas_args": {
			"type": "object",
			"properties": {
				"filename": {"type": "string", "description": "Filename of the search file."}
			},
			"required": ["filename"]
		}
	},
	"required": ["gas_fakes_args", "gas_args"]
}`

// --- search_files_by_name ---

type searchFilesTool struct{}

func newSearchFilesTool() *searchFilesTool { return &searchFilesTool{} }

func (t *searchFilesTool) Name() string { return SearchFilesName }
func (t *searchFilesTool) Description() string {
	return "Use this to search files by a filename on Google Drive."
}

func (t *searchFilesTool) Schema() json.RawMessage {
	return json.RawMessage(searchSchema)
}

type searchArgs struct {
	GasArgs struct {
		Filename string `json:"filename"`
	} `json:"gas_args"`
}

// fileRef is one search hit.
type fileRef struct {
	Filename string `json:"filename"`
	FileID   string `json:"fileId"`
}

func (t *searchFilesTool) Execute(ctx context.Context, args json.RawMessage, env tool.ExecutionEnv) (tool.Output, error) {
	var a searchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return invalidArgs(err), nil
	}

	files, err := env.Drive.FilesByName(ctx, a.GasArgs.Filename)
	if err != nil {
		return tool.Output{}, err
	}
	refs := make([]fileRef, 0, len(files))
	for _, f := range files {
		refs = append(refs, fileRef{Filename: f.Name, FileID: f.ID})
	}
	return marshalOutput(refs)
}

// --- read_file ---

type readFileTool struct{}

func newReadFileTool() *readFileTool { return &readFileTool{} }

func (t *readFileTool) Name() string { return ReadFileName }
func (t *readFileTool) Description() string {
	return "Use this to read the content of a file on Google Drive by its file ID. In strict sandbox mode the file ID must be listed in whitelistItems."
}

func (t *readFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"gas_fakes_args": ` + descriptorArgSchema + `,
			"gas_args": {
				"type": "object",
				"properties": {
					"fileId": {"type": "string", "minLength": 1, "description": "File ID of the file to read."}
				},
				"required": ["fileId"]
			}
		},
		"required": ["gas_fakes_args", "gas_args"]
	}`)
}

type readArgs struct {
	GasArgs struct {
		FileID string `json:"fileId"`
	} `json:"gas_args"`
}

// fileView is the JSON shape returned by read_file and write_file.
type fileView struct {
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType,omitempty"`
	Content  string `json:"content"`
}

func (t *readFileTool) Execute(ctx context.Context, args json.RawMessage, env tool.ExecutionEnv) (tool.Output, error) {
	var a readArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return invalidArgs(err), nil
	}
	f, err := env.Drive.Read(ctx, a.GasArgs.FileID)
	if err != nil {
		return tool.Output{}, err
	}
	return marshalOutput(fileView{FileID: f.ID, Filename: f.Name, MimeType: f.MimeType, Content: f.Content})
}

// --- write_file ---

type writeFileTool struct{}

func newWriteFileTool() *writeFileTool { return &writeFileTool{} }

func (t *writeFileTool) Name() string { return WriteFileName }
func (t *writeFileTool) Description() string {
	return "Use this to write a file on Google Drive. Give fileId to replace the content of an existing file, or filename to create a new file. Files created in a sandbox are trashed when the call ends."
}

func (t *writeFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"gas_fakes_args": ` + descriptorArgSchema + `,
			"gas_args": {
				"type": "object",
				"properties": {
					"fileId": {"type": "string", "description": "File ID of an existing file to overwrite."},
					"filename": {"type": "string", "description": "Name of a new file to create."},
					"mimeType": {"type": "string", "description": "MIME type of a new file. The default is text/plain."},
					"content": {"type": "string", "description": "Content to write."}
				},
				"required": ["content"]
			}
		},
		"required": ["gas_fakes_args", "gas_args"]
	}`)
}

type writeArgs struct {
	GasArgs struct {
		FileID   string `json:"fileId"`
		Filename string `json:"filename"`
		MimeType string `json:"mimeType"`
		Content  string `json:"content"`
	} `json:"gas_args"`
}

func (t *writeFileTool) Execute(ctx context.Context, args json.RawMessage, env tool.ExecutionEnv) (tool.Output, error) {
	var a writeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return invalidArgs(err), nil
	}
	g := a.GasArgs

	switch {
	case g.FileID != "":
		f, err := env.Drive.Write(ctx, g.FileID, g.Content)
		if err != nil {
			return tool.Output{}, err
		}
		return marshalOutput(fileView{FileID: f.ID, Filename: f.Name, MimeType: f.MimeType, Content: f.Content})
	case g.Filename != "":
		mime := g.MimeType
		if mime == "" {
			mime = "text/plain"
		}
		f, err := env.Drive.Create(ctx, g.Filename, mime, g.Content)
		if err != nil {
			return tool.Output{}, err
		}
		return marshalOutput(fileView{FileID: f.ID, Filename: f.Name, MimeType: f.MimeType, Content: f.Content})
	default:
		return tool.Output{}, ErrNoTarget
	}
}

// Interface guards.
var (
	_ tool.Handler = (*searchFilesTool)(nil)
	_ tool.Handler = (*readFileTool)(nil)
	_ tool.Handler = (*writeFileTool)(nil)
)
