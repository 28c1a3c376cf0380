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
	// QueryShellTimeout is the maximum time allowed for query shell command execution
	QueryShellTimeout = 30 * time.Second
)

var (
	// Shell command pattern: $(command)
	shellPattern = regexp.MustCompile(`^\$\((.+)\)$`)
)

// Apply applies filter and query expressions to a verdict body
// Filter narrows results (e.g., rules[?passed==`false`])
// Query transforms/selects fields (e.g., valid)
// If query starts with $(...), it's executed as a shell command with the body piped to stdin
func Apply(body string, filter string, query string) (string, error) {
	result := body

	if filter != "" {
		filtered, err := applyJMESPath(result, filter)
		if err != nil {
			return "", fmt.Errorf("failed to apply filter: %w", err)
		}
		result = filtered
	}

	if query != "" {
		if matches := shellPattern.FindStringSubmatch(query); len(matches) > 1 {
			queried, err := executeShellCommand(result, matches[1])
			if err != nil {
				return "", fmt.Errorf("failed to execute query shell command: %w", err)
			}
			result = queried
		} else {
			queried, err := applyJMESPath(result, query)
			if err != nil {
				return "", fmt.Errorf("failed to apply query: %w", err)
			}
			result = queried
		}
	}

	return result, nil
}

// applyJMESPath applies a JMESPath expression to a JSON string
func applyJMESPath(jsonStr string, expression string) (string, error) {
	var data interface{}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	jp, err := jmespath.Compile(expression)
	if err != nil {
		return "", fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
	}

	result, err := jp.Search(data)
	if err != nil {
		return "", fmt.Errorf("JMESPath search failed: %w", err)
	}

	if result == nil {
		return "null", nil
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	return string(output), nil
}

// executeShellCommand executes a shell command with the body piped to stdin
func executeShellCommand(body string, command string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), QueryShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdin = strings.NewReader(body)

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

// IsValidJMESPath checks if an expression is valid JMESPath syntax
func IsValidJMESPath(expression string) bool {
	_, err := jmespath.Compile(expression)
	return err == nil
}

// IsShellCommand checks if a query is a shell command (starts with $(...))
func IsShellCommand(query string) bool {
	return shellPattern.MatchString(query)
}
