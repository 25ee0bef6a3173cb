package detect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ProcessRunner invokes an external process with an argument vector and
// returns its standard output. Implementations must honor context
// cancellation; a timeout is reported as an ordinary error.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// NewExecRunner returns the production runner backed by os/exec.
func NewExecRunner() ProcessRunner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("process timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("process failed: %w (stderr: %s)", err, truncate(stderr.Bytes(), 512))
	}
	return stdout.Bytes(), nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(bytes.TrimSpace(b))
}

var ErrNoJSON = errors.New("no JSON object in process output")

// ExtractJSON returns the first balanced {...} object in raw output.
// Detector scripts emit diagnostics around the payload, so everything
// outside the first balanced object is ignored. String literals and
// escapes inside the object are respected.
func ExtractJSON(out []byte) ([]byte, error) {
	start := bytes.IndexByte(out, '{')
	if start < 0 {
		return nil, ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(out); i++ {
		c := out[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return out[start : i+1], nil
			}
		}
	}
	return nil, ErrNoJSON
}
