// Package setup provides setup and configuration utilities for the ADE signal MCP server.
package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ade-signal-mcp-server/internal/reference"
)

// ServerKey is the entry name used in MCP client configuration files.
const ServerKey = "ade-signal"

// DataDirEnv is the environment variable the lite server reads its data directory from.
const DataDirEnv = "ADE_DATA_DIR"

// ClaudeDesktopConfig represents the Claude Desktop configuration file structure.
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// SetupOptions contains options for the setup process.
type SetupOptions struct {
	BinaryPath   string // Path to the server binary
	DataDir      string // Data directory holding the reference database
	ReferenceCSV string // Optional CSV imported on every start
	AutoConfirm  bool   // Skip confirmation prompts
}

// GetClaudeDesktopConfigPath returns the path to Claude Desktop's config file.
func GetClaudeDesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClaudeDesktopConfig loads the existing configuration. A missing file
// yields an empty configuration.
func LoadClaudeDesktopConfig(configPath string) (*ClaudeDesktopConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClaudeDesktopConfig{MCPServers: make(map[string]MCPServerConfig)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ClaudeDesktopConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}
	return &config, nil
}

// SaveClaudeDesktopConfig writes config, creating the directory if needed.
func SaveClaudeDesktopConfig(configPath string, config *ClaudeDesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ConfigureClaudeDesktop adds or updates the ADE signal server entry. Other
// servers in the file are preserved.
func ConfigureClaudeDesktop(opts SetupOptions) error {
	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		return err
	}

	config, err := LoadClaudeDesktopConfig(configPath)
	if err != nil {
		return err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		binaryPath, err = findBinary()
		if err != nil {
			return fmt.Errorf("could not find server binary: %w", err)
		}
	}

	serverConfig := MCPServerConfig{
		Command: binaryPath,
		Args:    []string{},
		Env:     make(map[string]string),
	}
	if opts.DataDir != "" {
		serverConfig.Env[DataDirEnv] = opts.DataDir
	}
	if opts.ReferenceCSV != "" {
		serverConfig.Env["ADE_REFERENCE_CSV"] = opts.ReferenceCSV
	}

	config.MCPServers[ServerKey] = serverConfig
	return SaveClaudeDesktopConfig(configPath, config)
}

// findBinary attempts to find the server binary in common locations.
func findBinary() (string, error) {
	const binaryName = "mcp-server-lite"

	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + binaryName,
		"./build/" + binaryName,
		filepath.Join(home, ".local", "bin", binaryName),
		"/usr/local/bin/" + binaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if absPath, err := filepath.Abs(loc); err == nil {
				return absPath, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", binaryName)
}

// Status represents the current setup status.
type Status struct {
	ClaudeDesktopConfigured bool
	ClaudeDesktopPath       string
	ServerPath              string
	DataDir                 string
	ReferenceDBPresent      bool
	ReferenceDrugs          int64
	Issues                  []string
}

// GetStatus checks the client configuration and the reference database.
func GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Issues: []string{}}

	configPath, err := GetClaudeDesktopConfigPath()
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not determine Claude Desktop config path: %v", err))
	} else {
		status.ClaudeDesktopPath = configPath

		config, err := LoadClaudeDesktopConfig(configPath)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Could not load Claude Desktop config: %v", err))
		} else if serverConfig, ok := config.MCPServers[ServerKey]; ok {
			status.ClaudeDesktopConfigured = true
			status.ServerPath = serverConfig.Command
			if _, err := os.Stat(serverConfig.Command); os.IsNotExist(err) {
				status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", serverConfig.Command))
			}
			status.DataDir = serverConfig.Env[DataDirEnv]
		}
	}

	if status.DataDir == "" {
		status.DataDir = GetDefaultDataDir()
	}

	dbPath := ReferenceDBPath(status.DataDir)
	if _, err := os.Stat(dbPath); err == nil {
		status.ReferenceDBPresent = true
		count, err := countReference(ctx, dbPath)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Reference database unreadable: %v", err))
		} else {
			status.ReferenceDrugs = count
			if count == 0 {
				status.Issues = append(status.Issues, "Reference database is empty; run import-reference")
			}
		}
	} else {
		status.Issues = append(status.Issues, "Reference database not created yet; run import-reference")
	}

	return status, nil
}

func countReference(ctx context.Context, dbPath string) (int64, error) {
	store, err := reference.NewSQLiteStore(dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	return store.Count(ctx)
}

// Validate checks if the current setup is valid and functional.
func Validate(ctx context.Context) (bool, []string) {
	status, err := GetStatus(ctx)
	if err != nil {
		return false, []string{err.Error()}
	}

	issues := append([]string{}, status.Issues...)
	if !status.ClaudeDesktopConfigured {
		issues = append(issues, "ADE signal server not configured in Claude Desktop")
	} else if info, err := os.Stat(status.ServerPath); err == nil && info.Mode()&0111 == 0 {
		issues = append(issues, fmt.Sprintf("Server binary is not executable: %s", status.ServerPath))
	}

	return len(issues) == 0, issues
}

// GetDefaultDataDir returns the default data directory path.
func GetDefaultDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ade-signal")
}

// ReferenceDBPath returns the reference database location inside dataDir.
func ReferenceDBPath(dataDir string) string {
	return filepath.Join(dataDir, "reference.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir(dataDir string) error {
	if dataDir == "" {
		dataDir = GetDefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// ImportReference loads a CSV/TSV or JSON export into the data directory's
// reference database and returns the number of drugs imported.
func ImportReference(ctx context.Context, dataDir, path string) (int, error) {
	if err := EnsureDataDir(dataDir); err != nil {
		return 0, err
	}
	store, err := reference.NewSQLiteStore(ReferenceDBPath(dataDir))
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		file, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer file.Close()
		return store.ImportJSON(ctx, file)
	}
	return reference.ImportCSV(ctx, store, path)
}

// ExportReference writes the reference database as JSON.
func ExportReference(ctx context.Context, dataDir string, w io.Writer) error {
	dbPath := ReferenceDBPath(dataDir)
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("reference database not found at %s: %w", dbPath, err)
	}
	store, err := reference.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.ExportJSON(ctx, w)
}
