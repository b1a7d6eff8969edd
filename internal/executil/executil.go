// Package executil runs templated external commands.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"
	"time"

	"github.com/codex-k8s/command-bridge/internal/maputil"
)

const waitDelay = 2 * time.Second

// TemplateData defines the fields available in command templates.
type TemplateData struct {
	// Args are the decoded command arguments.
	Args map[string]any
	// Command is the bridge command name.
	Command string
	// RequestID links the run to its request.
	RequestID string
}

// Spec describes a command to run.
type Spec struct {
	// Command is the executable, or a shell script when Args is empty.
	Command string
	// Args are optional arguments; each is a template.
	Args []string
	// Env adds environment variables; values are templates.
	Env map[string]string
	// Dir is the working directory.
	Dir string
}

// Result is the outcome of a finished command.
type Result struct {
	// Output is combined stdout and stderr.
	Output string
	// ExitCode is -1 when the process did not start.
	ExitCode int
}

var funcs = func(data TemplateData) template.FuncMap {
	return template.FuncMap{
		"arg": func(name string) any {
			if data.Args == nil {
				return nil
			}
			return data.Args[name]
		},
		"quote": shellQuote,
		"join": func(sep string, values any) string {
			switch v := values.(type) {
			case []string:
				return strings.Join(v, sep)
			case []any:
				parts := make([]string, len(v))
				for i, item := range v {
					parts[i] = fmt.Sprint(item)
				}
				return strings.Join(parts, sep)
			default:
				return fmt.Sprint(values)
			}
		},
	}
}

// RenderTemplate renders value with data. Missing arguments render empty.
func RenderTemplate(value string, data TemplateData) (string, error) {
	tmpl, err := template.New("value").Option("missingkey=zero").Funcs(funcs(data)).Parse(value)
	if err != nil {
		return "", fmt.Errorf("template parse: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template render: %w", err)
	}
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

// BuildCommand renders spec into an exec.Cmd. Without Args the command runs
// through sh -c.
func BuildCommand(ctx context.Context, spec Spec, data TemplateData) (*exec.Cmd, error) {
	command, err := RenderTemplate(spec.Command, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("command is empty")
	}

	args := make([]string, 0, len(spec.Args))
	for _, arg := range spec.Args {
		rendered, err := RenderTemplate(arg, data)
		if err != nil {
			return nil, err
		}
		args = append(args, rendered)
	}

	var cmd *exec.Cmd
	if len(args) == 0 {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	} else {
		cmd = exec.CommandContext(ctx, command, args...)
	}
	cmd.Dir = spec.Dir
	// Grandchildren holding the output pipes must not outlive a cancelled context.
	cmd.WaitDelay = waitDelay

	cmd.Env = os.Environ()
	for _, key := range maputil.SortedKeys(spec.Env) {
		rendered, err := RenderTemplate(spec.Env[key], data)
		if err != nil {
			return nil, err
		}
		cmd.Env = append(cmd.Env, key+"="+rendered)
	}
	return cmd, nil
}

// Run executes spec and returns its combined output and exit code. A non-zero
// exit is reported as an *exec.ExitError.
func Run(ctx context.Context, spec Spec, data TemplateData) (Result, error) {
	cmd, err := BuildCommand(ctx, spec, data)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	err = cmd.Run()
	result := Result{Output: output.String(), ExitCode: -1}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	return result, err
}

func shellQuote(value any) string {
	s := fmt.Sprint(value)
	if value == nil {
		s = ""
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
