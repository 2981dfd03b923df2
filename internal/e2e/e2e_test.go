//go:build e2e

package e2e_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davidscn/coupled-laplace/internal/cmd"
)

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

// TestCoupledParticipants strings both commands together the way the two
// main() funcs would and lets them run a short coupled simulation against
// each other.
func TestCoupledParticipants(t *testing.T) {
	dir := t.TempDir()

	config := filepath.Join(dir, "coupling.yaml")
	contents := fmt.Sprintf(`time-window-size: 1
max-time: 2
mesh: interface
participants:
  - name: laplace-solver
    role: connector
    write-data: dummy
    read-data: boundary-data
  - name: boundary-generator
    role: acceptor
    address: %s
    write-data: boundary-data
    read-data: dummy
`, freeAddress(t))
	if err := os.WriteFile(config, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	generatorCmd, err := cmd.NewGeneratorCommand()
	if err != nil {
		t.Fatal(err)
	}
	generatorCmd.SetArgs([]string{"--config", config})

	solverCmd, err := cmd.NewSolverCommand()
	if err != nil {
		t.Fatal(err)
	}
	outputDir := filepath.Join(dir, "output")
	solverCmd.SetArgs([]string{
		"--config", config,
		"--refinements", "3",
		"--output-dir", outputDir,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	generatorErr := make(chan error, 1)
	go func() { generatorErr <- generatorCmd.ExecuteContext(ctx) }()

	if err := solverCmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("solver: %v", err)
	}
	if err := <-generatorErr; err != nil {
		t.Fatalf("generator: %v", err)
	}

	for _, name := range []string{"solution-1.vtk", "solution-2.vtk"} {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
}
