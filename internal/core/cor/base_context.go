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
// per-job export pipeline. This file defines BaseContext, the default
// Context implementation. It is the property bag for one job execution:
// arbitrary data shared between commands, the ordered error list, and the
// temp-file registry whose Close method backs the pipeline's cleanup
// guarantee.
//
// A BaseContext is owned by exactly one job. Concurrent jobs in the batch
// executor each get their own context, so no locking is needed here.
package cor

import (
	"context"
	"log/slog"
	"os"
)

// BaseContext is the default implementation of the Context interface.
type BaseContext struct {
	data      map[string]interface{}
	errors    []CommandError
	tempFiles []string
	context   context.Context
}

// NewBaseContext returns a new, empty context object.
func NewBaseContext() Context {
	return &BaseContext{
		data:      make(map[string]interface{}),
		errors:    make([]CommandError, 0),
		tempFiles: make([]string, 0),
	}
}

// SetContext sets the underlying standard Go context.
func (c *BaseContext) SetContext(ctx context.Context) {
	c.context = ctx
}

// GetContext retrieves the underlying standard Go context.
func (c *BaseContext) GetContext() context.Context {
	return c.context
}

// Close removes every tracked temporary file. Missing files are fine; a
// command may have already moved or deleted its own artifact.
func (c *BaseContext) Close() {
	for _, file := range c.GetTempFiles() {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temporary file", "path", file, "error", err)
		}
	}
}

// Add stores a key-value pair in the context's data map.
func (c *BaseContext) Add(key string, value interface{}) Context {
	c.data[key] = value
	return c
}

// AddTempFile registers a file path for cleanup when Close runs.
func (c *BaseContext) AddTempFile(path string) {
	c.tempFiles = append(c.tempFiles, path)
}

// GetTempFiles returns all tracked temporary file paths.
func (c *BaseContext) GetTempFiles() []string {
	return c.tempFiles
}

// AddError appends an error attributed to the named command.
func (c *BaseContext) AddError(command string, err error) {
	c.errors = append(c.errors, CommandError{Command: command, Err: err})
}

// Errors returns the recorded failures in the order they occurred.
func (c *BaseContext) Errors() []CommandError {
	return c.errors
}

// FirstError returns the earliest recorded error, or nil when the execution
// was clean.
func (c *BaseContext) FirstError() error {
	if len(c.errors) == 0 {
		return nil
	}
	return c.errors[0].Err
}

// Get retrieves a value from the context's data map.
func (c *BaseContext) Get(key string) interface{} {
	return c.data[key]
}

// Remove deletes a key-value pair from the context's data map.
func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

// HasErrors reports whether any error has been recorded.
func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}
