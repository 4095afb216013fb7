// Package mcpserver exposes the engine and its workspace as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/marcelocantos/neoshell/internal/engine"
)

// Server wraps an engine in an MCP server.
type Server struct {
	eng *engine.Engine
	mcp *server.MCPServer
}

// New registers the neoshell tools on a fresh MCP server.
func New(eng *engine.Engine, version string) *Server {
	s := &Server{
		eng: eng,
		mcp: server.NewMCPServer("neoshell", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("run_command",
		mcp.WithDescription("Classify a command line (execution, pipe, redirect, background) and run it in the workspace. Returns the result record as JSON."),
		mcp.WithString("command", mcp.Required(), mcp.Description("Command line, e.g. `printf 'b\\na\\n' | sort` or `echo hi >> log.txt`")),
		mcp.WithBoolean("background", mcp.Description("Run detached and return its pid instead of waiting")),
	), s.runCommand)

	s.mcp.AddTool(mcp.NewTool("list_jobs",
		mcp.WithDescription("List background processes started by this server that are still running."),
	), s.listJobs)

	s.mcp.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create or overwrite a text file in the workspace."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name relative to the workspace")),
		mcp.WithString("content", mcp.Description("File content")),
	), s.createFile)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List regular files in the workspace with size and modification time."),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a text file from the workspace."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name relative to the workspace")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("delete_file",
		mcp.WithDescription("Delete a file from the workspace."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name relative to the workspace")),
	), s.deleteFile)

	return s
}

// Serve speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// resultView is the JSON shape returned by run_command.
type resultView struct {
	Kind        string  `json:"kind"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Stdout      string  `json:"stdout"`
	Stderr      string  `json:"stderr"`
	ElapsedMS   float64 `json:"elapsed_ms"`
	ExitCode    int     `json:"exit_code"`
	PID         int     `json:"pid,omitempty"`
	Failure     string  `json:"failure,omitempty"`
	Notice      string  `json:"notice,omitempty"`
}

func viewOf(res *engine.Result) resultView {
	v := resultView{
		Kind:        res.Kind.Slug(),
		Label:       res.Kind.String(),
		Description: res.Description,
		Stdout:      res.Stdout,
		Stderr:      res.Stderr,
		ElapsedMS:   float64(res.Elapsed.Microseconds()) / 1000,
		ExitCode:    res.ExitCode,
		PID:         res.PID,
		Notice:      res.Notice,
	}
	if res.Failure != engine.None {
		v.Failure = res.Failure.String()
	}
	return v
}

func (s *Server) runCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.eng.Dispatch(ctx, engine.Request{
		Command:    command,
		Background: req.GetBool("background", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(viewOf(res))
}

func (s *Server) listJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.eng.Jobs())
}

func (s *Server) createFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.eng.Workspace().Create(name, req.GetString("content", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(f)
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.eng.Workspace().List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(files)
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.eng.Workspace().Read(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) deleteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.eng.Workspace().Delete(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted " + name), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
