//go:build integration

package integration

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	APIEndpoint string
	Email       string
	Password    string
	RentalsPath string
	Verbose     bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		APIEndpoint: os.Getenv("RENTALS_TEST_API"),
		Email:       os.Getenv("RENTALS_TEST_EMAIL"),
		Password:    os.Getenv("RENTALS_TEST_PASSWORD"),
		RentalsPath: getRentalsPath(),
		Verbose:     os.Getenv("RENTALS_TEST_VERBOSE") == "true",
	}
}

// getRentalsPath determines the path to the rentals binary
func getRentalsPath() string {
	if path := os.Getenv("RENTALS_BINARY_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"../../rentals",
		"./rentals",
		"../rentals",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "rentals"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.APIEndpoint == "" {
		t.Skip("RENTALS_TEST_API not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.RentalsPath); err != nil {
		t.Skipf("rentals binary not found at %s, skipping integration test", config.RentalsPath)
	}
}

// SkipIfNoAccount skips tests that need a signed-in user
func (config *TestConfig) SkipIfNoAccount(t *testing.T) {
	t.Helper()

	if config.Email == "" || config.Password == "" {
		t.Skip("RENTALS_TEST_EMAIL/RENTALS_TEST_PASSWORD not set, skipping")
	}
}

// CommandRunner runs the rentals binary against an isolated home directory,
// so config and credentials never touch the developer's own.
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
	home   string
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config: config,
		t:      t,
		home:   t.TempDir(),
	}
}

// Run executes a rentals command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	return runner.RunWithInput("", args...)
}

// RunWithInput executes a rentals command with stdin input
func (runner *CommandRunner) RunWithInput(input string, args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--api", runner.config.APIEndpoint}, args...)

	// #nosec G204 -- the binary path comes from the test environment.
	cmd := exec.Command(runner.config.RentalsPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+runner.home)
	cmd.Stdin = strings.NewReader(input)

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.RentalsPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// Login signs the test account in
func (runner *CommandRunner) Login() error {
	_, stderr, err := runner.Run("login", "--email", runner.config.Email, "--password", runner.config.Password)
	if err != nil {
		return fmt.Errorf("failed to log in: %s", stderr)
	}

	return nil
}

// AssertJSONOutput verifies command output is valid JSON
func AssertJSONOutput(t *testing.T, output string) {
	t.Helper()

	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "{") && !strings.HasPrefix(output, "[") {
		t.Errorf("Output does not appear to be JSON: %s", output)
	}
}

// AssertYAMLOutput verifies command output is valid YAML
func AssertYAMLOutput(t *testing.T, output string) {
	t.Helper()

	output = strings.TrimSpace(output)
	if strings.Contains(output, "---") || strings.Contains(output, ":") {
		return
	}

	t.Errorf("Output does not appear to be YAML: %s", output)
}
