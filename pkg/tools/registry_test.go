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
package tools

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/spool/pkg/memory"
)

func newTestRegistry(tools ...Tool) *Registry {
	reg := NewRegistry(nil, nil)
	for _, tool := range tools {
		reg.Register(tool)
	}
	return reg
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := newTestRegistry(&stubTool{name: "alpha"})

	got, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryReplacesSameName(t *testing.T) {
	first := &stubTool{name: "dup", result: &Result{Success: true, Data: "first"}}
	second := &stubTool{name: "dup", result: &Result{Success: true, Data: "second"}}

	reg := newTestRegistry(first, second)
	require.Equal(t, 1, reg.Count())

	res := reg.Execute(context.Background(), "dup", nil)
	assert.Equal(t, "second", res.Data)
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := newTestRegistry(
		&stubTool{name: "zeta"},
		&stubTool{name: "alpha"},
		&stubTool{name: "mid"},
	)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())

	tools := reg.Tools()
	require.Len(t, tools, 3)
	assert.Equal(t, "alpha", tools[0].Name())
	assert.Equal(t, "zeta", tools[2].Name())
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	reg := newTestRegistry()

	res := reg.Execute(context.Background(), "nope", nil)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, memory.KindValidation, res.Error.Kind)
	assert.Contains(t, res.Error.Message, "unknown tool")
}

func TestRegistryExecuteValidation(t *testing.T) {
	schema := NewObjectSchema("test", map[string]*JSONSchema{
		"name":  NewStringSchema("name"),
		"score": NewNumberSchema("score").WithRange(floatP(0), floatP(1)),
		"limit": NewIntegerSchema("limit"),
	}, []string{"name"})

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
	}{
		{
			name:    "valid",
			args:    map[string]interface{}{"name": "x", "score": 0.5},
			wantErr: false,
		},
		{
			name:    "missing required",
			args:    map[string]interface{}{"score": 0.5},
			wantErr: true,
		},
		{
			name:    "nil args missing required",
			args:    nil,
			wantErr: true,
		},
		{
			name:    "out of range",
			args:    map[string]interface{}{"name": "x", "score": 1.5},
			wantErr: true,
		},
		{
			name:    "wrong type",
			args:    map[string]interface{}{"name": "x", "limit": "ten"},
			wantErr: true,
		},
		{
			name:    "whole float accepted as integer",
			args:    map[string]interface{}{"name": "x", "limit": float64(10)},
			wantErr: false,
		},
		{
			name:    "fractional float rejected as integer",
			args:    map[string]interface{}{"name": "x", "limit": 10.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &stubTool{name: "checked", schema: schema, result: &Result{Success: true}}
			reg := newTestRegistry(tool)

			res := reg.Execute(context.Background(), "checked", tt.args)
			require.NotNil(t, res)
			if tt.wantErr {
				assert.False(t, res.Success)
				require.NotNil(t, res.Error)
				assert.Equal(t, memory.KindValidation, res.Error.Kind)
				assert.Nil(t, tool.received, "tool must not run on invalid arguments")
			} else {
				assert.True(t, res.Success)
				assert.NotNil(t, tool.received)
			}
		})
	}
}

func TestRegistryExecuteEnum(t *testing.T) {
	schema := NewObjectSchema("test", map[string]*JSONSchema{
		"kind": NewStringSchema("kind").WithEnum("a", "b"),
	}, nil)
	reg := newTestRegistry(&stubTool{name: "enum", schema: schema, result: &Result{Success: true}})

	res := reg.Execute(context.Background(), "enum", map[string]interface{}{"kind": "c"})
	assert.False(t, res.Success)

	res = reg.Execute(context.Background(), "enum", map[string]interface{}{"kind": "b"})
	assert.True(t, res.Success)
}

func TestRegistryExecuteConvertsErrors(t *testing.T) {
	t.Run("typed error passes through", func(t *testing.T) {
		reg := newTestRegistry(&stubTool{name: "failing", err: memory.NewNotFound("project", "ghost")})

		res := reg.Execute(context.Background(), "failing", nil)
		assert.False(t, res.Success)
		require.NotNil(t, res.Error)
		assert.Equal(t, memory.KindNotFound, res.Error.Kind)
	})

	t.Run("plain error wrapped", func(t *testing.T) {
		reg := newTestRegistry(&stubTool{name: "failing", err: errors.New("boom")})

		res := reg.Execute(context.Background(), "failing", nil)
		assert.False(t, res.Success)
		require.NotNil(t, res.Error)
		assert.Equal(t, memory.KindTask, res.Error.Kind)
	})
}

func TestRegistryExecuteSuccess(t *testing.T) {
	reg := newTestRegistry(&stubTool{name: "ok", result: &Result{Success: true, Data: "done"}})

	res := reg.Execute(context.Background(), "ok", map[string]interface{}{"extra": "ignored"})
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "done", res.Data)
	assert.GreaterOrEqual(t, res.ExecutionTimeMs, int64(0))
}

func TestRegistryExecuteNilResult(t *testing.T) {
	reg := newTestRegistry(&stubTool{name: "silent"})

	res := reg.Execute(context.Background(), "silent", nil)
	require.NotNil(t, res)
	assert.True(t, res.Success)
}

func TestValidateArgumentsNilSchema(t *testing.T) {
	err := ValidateArguments(nil, map[string]interface{}{"anything": "goes"})
	assert.NoError(t, err)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Register(&stubTool{name: "tool", result: &Result{Success: true}})
		}()
		go func() {
			defer wg.Done()
			_ = reg.Names()
			_ = reg.Count()
			_ = reg.Execute(context.Background(), "tool", nil)
		}()
	}
	wg.Wait()
}
