package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/moa/internal/promptdata"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// moaMCPEntry is the MCP server configuration for the moa binary.
var moaMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "moa",
  "args": ["serve-mcp", "--config", "moa.yml"]
}`)

func newInitCmd() *cobra.Command {
	var force, withMCP bool
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write an example moa.yml and prompt documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd.OutOrStdout(), dir, force, withMCP)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "also register moa in .mcp.json")
	return cmd
}

// runInit copies the embedded scaffold into dir. Existing files are kept
// unless force is set.
func runInit(out io.Writer, dir string, force, withMCP bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}

	root := promptdata.Root
	err = fs.WalkDir(promptdata.ScaffoldFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(abs, rel)

		if d.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}

		if !force {
			if _, err := os.Stat(dest); err == nil {
				fmt.Fprintf(out, "  skipped %s (exists, use --force to overwrite)\n", dotRelative(abs, dest))
				return nil
			}
		}

		data, err := promptdata.ScaffoldFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading embedded %s: %w", path, err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}

		fmt.Fprintf(out, "  created %s\n", dotRelative(abs, dest))
		return nil
	})
	if err != nil {
		return fmt.Errorf("copying scaffold: %w", err)
	}

	if withMCP {
		if err := mergeMCPConfig(out, filepath.Join(abs, ".mcp.json"), force); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "\nSetup complete. Edit moa.yml, then run: moa run \"your question\"")
	return nil
}

// mergeMCPConfig creates or merges the moa entry into .mcp.json.
func mergeMCPConfig(out io.Writer, mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["moa"]; exists && !force {
		fmt.Fprintf(out, "  skipped .mcp.json moa entry (exists, use --force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["moa"] = moaMCPEntry

	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}
	if err := os.WriteFile(mcpPath, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Fprintf(out, "  %s .mcp.json with moa MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to base, prefixed with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}
