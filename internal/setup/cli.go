package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewCLI creates a setup CLI reading from stdin and writing to stdout.
func NewCLI() *CLI {
	return NewCLIWithIO(os.Stdin, os.Stdout)
}

// NewCLIWithIO creates a setup CLI over the given streams.
func NewCLIWithIO(in io.Reader, out io.Writer) *CLI {
	return &CLI{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "claude-desktop":
		return c.setupClaudeDesktop(args[1:])
	case "import-reference":
		return c.importReference(ctx, args[1:])
	case "export-reference":
		return c.exportReference(ctx, args[1:])
	case "status":
		return c.showStatus(ctx)
	case "validate":
		return c.validate(ctx)
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		c.printf("Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *CLI) println(args ...interface{}) {
	fmt.Fprintln(c.out, args...)
}

// showHelp displays usage information.
func (c *CLI) showHelp() error {
	c.println(`
ADE Signal MCP Server Setup

Usage:
  mcp-server-lite setup <command> [options]

Commands:
  claude-desktop    Configure Claude Desktop integration
  import-reference  Import a reference reaction CSV/TSV or JSON export
  export-reference  Export the reference database as JSON
  status            Show current setup status
  validate          Validate current configuration

Options:
  --data-dir, -d    Data directory (default: $ADE_DATA_DIR or ~/.ade-signal)
  --binary, -b      Server binary path (claude-desktop)
  --reference, -r   Reference CSV imported on every start (claude-desktop)
  --auto, -y        Skip confirmation prompts

Examples:
  mcp-server-lite setup import-reference faers_reactions.csv
  mcp-server-lite setup export-reference reference.json
  mcp-server-lite setup claude-desktop --auto`)
	return nil
}

// parseFlags splits the shared flags from positional arguments.
func parseFlags(args []string) (SetupOptions, []string) {
	var opts SetupOptions
	var positional []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--binary", "-b":
			if i+1 < len(args) {
				opts.BinaryPath = args[i+1]
				i++
			}
		case "--data-dir", "-d":
			if i+1 < len(args) {
				opts.DataDir = args[i+1]
				i++
			}
		case "--reference", "-r":
			if i+1 < len(args) {
				opts.ReferenceCSV = args[i+1]
				i++
			}
		case "--auto", "-y":
			opts.AutoConfirm = true
		default:
			positional = append(positional, args[i])
		}
	}

	if opts.DataDir == "" {
		opts.DataDir = GetDefaultDataDir()
	}
	return opts, positional
}

// setupClaudeDesktop configures Claude Desktop integration.
func (c *CLI) setupClaudeDesktop(args []string) error {
	opts, _ := parseFlags(args)

	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	configPath, _ := GetClaudeDesktopConfigPath()
	c.println("Claude Desktop Configuration")
	c.println("============================")
	c.printf("Config file: %s\n", configPath)
	c.printf("Server binary: %s\n", opts.BinaryPath)
	c.printf("Data directory: %s\n\n", opts.DataDir)

	if !opts.AutoConfirm {
		c.printf("Proceed with configuration? [Y/n]: ")
		response, _ := c.reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			c.println("Configuration cancelled.")
			return nil
		}
	}

	if err := ConfigureClaudeDesktop(opts); err != nil {
		return fmt.Errorf("failed to configure Claude Desktop: %w", err)
	}
	if err := EnsureDataDir(opts.DataDir); err != nil {
		c.printf("Warning: could not create data directory: %v\n", err)
	}

	c.println()
	c.println("✓ Claude Desktop configured successfully!")
	c.println()
	c.println("Next steps:")
	c.println("  1. Import a reference dataset: mcp-server-lite setup import-reference <file.csv>")
	c.println("  2. Restart Claude Desktop to load the new configuration")
	c.println("  3. Ask: \"Analyze this conversation for adverse drug events: ...\"")
	return nil
}

// importReference loads a reference file into the data directory.
func (c *CLI) importReference(ctx context.Context, args []string) error {
	opts, positional := parseFlags(args)
	if len(positional) != 1 {
		return fmt.Errorf("usage: import-reference [--data-dir DIR] <file.csv|file.tsv|file.json>")
	}

	imported, err := ImportReference(ctx, opts.DataDir, positional[0])
	if err != nil {
		return fmt.Errorf("failed to import reference: %w", err)
	}

	c.printf("✓ Imported %d drugs into %s\n", imported, ReferenceDBPath(opts.DataDir))
	return nil
}

// exportReference writes the reference database to a file or stdout.
func (c *CLI) exportReference(ctx context.Context, args []string) error {
	opts, positional := parseFlags(args)

	if len(positional) == 0 || positional[0] == "-" {
		return ExportReference(ctx, opts.DataDir, c.out)
	}

	file, err := os.Create(positional[0])
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := ExportReference(ctx, opts.DataDir, file); err != nil {
		return fmt.Errorf("failed to export reference: %w", err)
	}
	c.printf("✓ Exported reference database to %s\n", positional[0])
	return nil
}

// showStatus displays the current setup status.
func (c *CLI) showStatus(ctx context.Context) error {
	status, err := GetStatus(ctx)
	if err != nil {
		return err
	}

	c.println("ADE Signal MCP Server Status")
	c.println("============================")
	c.println()

	c.println("Claude Desktop:")
	c.printf("  Config path: %s\n", status.ClaudeDesktopPath)
	if status.ClaudeDesktopConfigured {
		c.println("  Status: ✓ Configured")
		c.printf("  Binary: %s\n", status.ServerPath)
	} else {
		c.println("  Status: ✗ Not configured")
	}
	c.println()

	c.println("Reference Database:")
	c.printf("  Path: %s\n", ReferenceDBPath(status.DataDir))
	if status.ReferenceDBPresent {
		c.printf("  Drugs: %d\n", status.ReferenceDrugs)
	} else {
		c.println("  Status: - Not created yet")
	}
	c.println()

	if len(status.Issues) > 0 {
		c.println("Issues:")
		for _, issue := range status.Issues {
			c.printf("  ⚠ %s\n", issue)
		}
		c.println()
	}
	return nil
}

// validate checks the current configuration.
func (c *CLI) validate(ctx context.Context) error {
	c.println("Validating configuration...")
	c.println()

	valid, issues := Validate(ctx)
	if valid {
		c.println("✓ Configuration is valid!")
		return nil
	}

	c.println("✗ Configuration has issues:")
	for _, issue := range issues {
		c.printf("  - %s\n", issue)
	}
	return nil
}
