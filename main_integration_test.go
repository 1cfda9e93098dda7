package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func buildTestBinary(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping binary build in short mode")
	}
	binName := "tokenflow_it_bin"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Env = os.Environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, string(out))
	}
	return bin
}

func runBinary(t *testing.T, bin string, args ...string) (string, int) {
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), "TOKENFLOW_ISSUER_URL=", "TOKENFLOW_REDIS_ADDR=")
	out, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), exitErr.ExitCode()
	}
	if err != nil {
		t.Fatalf("failed to run binary: %v", err)
	}
	return string(out), 0
}

// TestLoginTokenLogout runs a whole session against a temporary database.
func TestLoginTokenLogout(t *testing.T) {
	bin := buildTestBinary(t)
	dbPath := filepath.Join(t.TempDir(), "tokens.db")

	out, code := runBinary(t, bin, "--db", dbPath, "login", "--access", "abc", "--refresh", "def")
	if code != 0 {
		t.Fatalf("login exited with %d: %s", code, out)
	}

	out, code = runBinary(t, bin, "--db", dbPath, "token")
	if code != 0 || !strings.Contains(out, "Bearer abc") {
		t.Fatalf("token exited with %d: %s", code, out)
	}

	if out, code = runBinary(t, bin, "--db", dbPath, "logout"); code != 0 {
		t.Fatalf("logout exited with %d: %s", code, out)
	}

	// Logged out with no refresh token: the auth exit code.
	if out, code = runBinary(t, bin, "--db", dbPath, "token"); code != 3 {
		t.Fatalf("expected exit code 3 after logout, got %d: %s", code, out)
	}
}

// TestGracefulInterrupt runs the watch command and sends SIGINT, expecting it to exit promptly.
func TestGracefulInterrupt(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("SIGINT cannot be sent to a process on Windows")
	}
	bin := buildTestBinary(t)
	cmd := exec.Command(bin, "--db", filepath.Join(t.TempDir(), "tokens.db"), "watch", "--keep-alive=false")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start binary: %v", err)
	}
	// Allow startup
	time.Sleep(200 * time.Millisecond)
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Fatalf("failed to send interrupt: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		// main exits with status 1 on interrupt.
		_ = err
	case <-time.After(3 * time.Second):
		t.Fatal("process did not exit within 3s after SIGINT")
	}
}
