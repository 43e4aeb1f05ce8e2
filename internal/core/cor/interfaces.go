// Copyright 2025 Clipforge, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cor (Chain of Responsibility) provides the building blocks for the
// per-job export pipeline. A chain executes an ordered list of commands
// against a shared Context; the context carries data between commands,
// collects errors in execution order, and tracks every temporary file a
// command creates so that Close can remove them on every exit path. That
// tracked-file contract is what gives the extraction worker its cleanup
// guarantee: callers defer Context.Close before running a chain and no
// command has to reason about which earlier step created which file.
package cor

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys the chain uses to pipe the primary output of
// one command into the primary input of the next.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// CommandError pairs an error with the name of the command that recorded it.
// Errors are kept in the order they were added so callers can surface the
// first (root-cause) failure rather than an arbitrary map entry.
type CommandError struct {
	Command string
	Err     error
}

// Context is the shared state object passed through a chain of commands for
// a single job execution.
type Context interface {
	// SetContext and GetContext manage the standard Go context, used for
	// cancellation, per-job deadlines and trace propagation.
	SetContext(ctx context.Context)
	GetContext() context.Context

	// Add stores a key-value pair; it returns the Context for chaining.
	Add(key string, value interface{}) Context

	// Get retrieves a stored value, or nil when the key is absent.
	Get(key string) interface{}

	// Remove deletes a key-value pair.
	Remove(key string)

	// AddError records a failure attributed to the named command.
	AddError(command string, err error)

	// Errors returns all recorded failures in the order they occurred.
	Errors() []CommandError

	// FirstError returns the earliest recorded error, or nil. This is the
	// error a caller should map into its own taxonomy: later errors are
	// usually consequences of the first one.
	FirstError() error

	// HasErrors reports whether any error has been recorded.
	HasErrors() bool

	// AddTempFile registers a file for removal when Close runs.
	AddTempFile(path string)

	// GetTempFiles returns every tracked temporary file path.
	GetTempFiles() []string

	// Close removes all tracked temporary files. It must be safe to call on
	// every exit path, including after a failed command.
	Close()
}

// Executable is any object with core execution logic.
type Executable interface {
	Execute(ctx Context)
}

// Command is an atomic, testable unit of pipeline work.
type Command interface {
	Executable

	// GetName returns the command name used in logs, metrics and error
	// attribution.
	GetName() string

	// GetInputParam and GetOutputParam return the context keys the command
	// reads its primary input from and writes its primary output to.
	GetInputParam() string
	GetOutputParam() string

	// IsExecutable is the precondition check run before Execute.
	IsExecutable(ctx Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a sequence of commands. A Chain is itself a Command, so chains
// can be nested.
type Chain interface {
	Command

	// ContinueOnFailure controls whether the chain keeps executing commands
	// after one of them records an error. The export pipeline leaves this
	// false: a failed download must not reach the encoder.
	ContinueOnFailure(bool) Chain

	// AddCommand appends a command to the execution sequence.
	AddCommand(command Command) Chain
}
