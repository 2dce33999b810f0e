// Package filter narrows RPC results with JMESPath or an external command.
package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/jmespath/go-jmespath"
)

const (
	// ShellTimeout is the maximum time allowed for a $(command) filter
	ShellTimeout = 30 * time.Second
)

// $(command)
var shellPattern = regexp.MustCompile(`^\$\((.+)\)$`)

// Apply runs expression against a JSON document and returns indented JSON.
// An expression of the form $(cmd) pipes the document to `sh -c cmd` instead.
// An empty expression returns the document re-indented.
func Apply(ctx context.Context, body []byte, expression string) (string, error) {
	expression = strings.TrimSpace(expression)

	if matches := shellPattern.FindStringSubmatch(expression); len(matches) > 1 {
		out, err := executeShellCommand(ctx, body, matches[1])
		if err != nil {
			return "", fmt.Errorf("failed to execute filter command: %w", err)
		}
		return out, nil
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	if expression != "" {
		jp, err := jmespath.Compile(expression)
		if err != nil {
			return "", fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
		}
		data, err = jp.Search(data)
		if err != nil {
			return "", fmt.Errorf("JMESPath search failed: %w", err)
		}
	}

	if data == nil {
		return "null", nil
	}

	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output), nil
}

func executeShellCommand(ctx context.Context, body []byte, command string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = bytes.NewReader(body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := err.Error()
		if stderr.Len() > 0 {
			errMsg = strings.TrimSpace(stderr.String())
		}
		return "", fmt.Errorf("command '%s' failed: %s", command, errMsg)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// IsValid reports whether expression is a shell filter or compiles as JMESPath.
func IsValid(expression string) bool {
	if IsShellCommand(expression) {
		return true
	}
	_, err := jmespath.Compile(strings.TrimSpace(expression))
	return err == nil
}

// IsShellCommand checks if an expression is a shell command ($(...))
func IsShellCommand(expression string) bool {
	return shellPattern.MatchString(strings.TrimSpace(expression))
}
