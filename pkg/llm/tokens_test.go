// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCounter_CountTokens(t *testing.T) {
	tc := GetTokenCounter()

	assert.Equal(t, 0, tc.CountTokens(""))
	assert.Greater(t, tc.CountTokens("use dependency injection for testability"), 0)

	short := tc.CountTokens("hi")
	long := tc.CountTokens("a considerably longer sentence about repository patterns and error handling")
	assert.Greater(t, long, short)
}

func TestTokenCounter_FallbackEstimate(t *testing.T) {
	tc := &TokenCounter{encoder: nil}
	assert.Equal(t, 5, tc.CountTokens("abcdefghijklmnopqrst"))
}

func TestTokenCounter_CountTokensMultiple(t *testing.T) {
	tc := GetTokenCounter()
	a := tc.CountTokens("first segment")
	b := tc.CountTokens("second segment")
	assert.Equal(t, a+b, tc.CountTokensMultiple("first segment", "second segment"))
}
