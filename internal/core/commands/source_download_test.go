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

package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFixtureSource(t *testing.T) {
	assert.True(t, isFixtureSource("https://media.example.com/fixtures/clip-77.mp4"))
	assert.True(t, isFixtureSource("https://media.example.com/uploads/fixture-1.mp4"))
	assert.True(t, isFixtureSource("https://media.example.com/uploads/test-run.mp4"))

	// Signed storage URLs carry long query strings after the object path.
	assert.True(t, isFixtureSource("https://bucket.s3.us-east-1.amazonaws.com/uploads/fixture-1.mp4?X-Amz-Signature=abc123&X-Amz-Expires=900"))
	assert.True(t, isFixtureSource("https://storage.googleapis.com/bucket/fixtures/clip-2.mp4?GoogleAccessId=signer&Signature=xyz"))

	assert.False(t, isFixtureSource("https://media.example.com/videos/source.mp4"))
	// A fixture-looking name in the query string does not make the source a
	// fixture.
	assert.False(t, isFixtureSource("https://media.example.com/videos/source.mp4?name=fixture-1.mp4"))
}
