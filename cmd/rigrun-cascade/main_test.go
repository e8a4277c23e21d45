// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-cascade/internal/config"
	"github.com/jeranaias/rigrun-cascade/internal/ollama"
)

const answer = "Two plus two equals four, which follows directly from basic addition of whole numbers."

// fakeOllama serves /api/tags and /api/chat for the given model names.
func fakeOllama(t *testing.T, models ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			resp := ollama.ListModelsResponse{}
			for _, m := range models {
				resp.Models = append(resp.Models, ollama.ModelInfo{Name: m})
			}
			_ = json.NewEncoder(w).Encode(resp)
		case "/api/chat":
			var req ollama.ChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			msg := ollama.Message{Role: "assistant", Content: answer}
			if !req.Stream {
				_ = json.NewEncoder(w).Encode(ollama.ChatResponse{Model: req.Model, Message: msg, Done: true, PromptEvalCount: 12, EvalCount: 16})
				return
			}
			enc := json.NewEncoder(w)
			_ = enc.Encode(ollama.ChatResponse{Model: req.Model, Message: msg})
			_ = enc.Encode(ollama.ChatResponse{Model: req.Model, Message: ollama.Message{Role: "assistant"}, Done: true, PromptEvalCount: 12, EvalCount: 16})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// writeConfig writes a TOML config with two Ollama models served by baseURL.
func writeConfig(t *testing.T, baseURL, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	body := fmt.Sprintf(`
[logging]
level = "error"
env = "development"

[metrics]
enabled = false

[providers.ollama]
base_url = %q

[[models]]
name = "draft-small"
provider = "ollama"
supports_tools = true

[[models]]
name = "verifier-large"
provider = "ollama"
supports_tools = true
%s`, baseURL, extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func writeTools(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

const weatherTool = `[{"name":"get_weather","description":"Look up the weather","parameters":{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}}]`

func TestRoute(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1", "")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"trivial cascades", []string{"What is 2+2?"}, []string{"strategy:    CASCADE", "draft:       ollama/draft-small", "verifier:    ollama/verifier-large"}},
		{"force direct", []string{"--force-direct", "What is 2+2?"}, []string{"strategy:    DIRECT_BEST"}},
		{"expert hint", []string{"--complexity", "expert", "hello"}, []string{"strategy:    DIRECT_BEST", "complexity:  expert"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, append([]string{"--config", cfgPath, "route"}, tt.args...)...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestRoute_JSON(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1", "")

	out, _, err := run(t, "--config", cfgPath, "route", "--json", "What is 2+2?")
	require.NoError(t, err)

	var got struct {
		Decision struct {
			Strategy string `json:"strategy"`
		} `json:"decision"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "CASCADE", got.Decision.Strategy)
}

func TestRoute_BadComplexity(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1", "")

	_, _, err := run(t, "--config", cfgPath, "route", "--complexity", "impossible", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown complexity")
}

func TestComplete(t *testing.T) {
	srv := fakeOllama(t, "draft-small", "verifier-large")
	cfgPath := writeConfig(t, srv.URL, "")

	out, errOut, err := run(t, "--config", cfgPath, "complete", "What is 2+2?")
	require.NoError(t, err)
	assert.Contains(t, out, answer)
	assert.Contains(t, errOut, "model=")
}

func TestComplete_Stream(t *testing.T) {
	srv := fakeOllama(t, "draft-small", "verifier-large")
	cfgPath := writeConfig(t, srv.URL, "")

	out, errOut, err := run(t, "--config", cfgPath, "complete", "--stream", "What is 2+2?")
	require.NoError(t, err)
	assert.Contains(t, out, answer)
	assert.Contains(t, errOut, "routing:")
	assert.Contains(t, errOut, "model=")
}

func TestComplete_JSON(t *testing.T) {
	srv := fakeOllama(t, "draft-small", "verifier-large")
	cfgPath := writeConfig(t, srv.URL, "")

	out, _, err := run(t, "--config", cfgPath, "complete", "--json", "--force-direct", "What is 2+2?")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, answer, res["content"])
	assert.Equal(t, "verifier-large", res["model_name"])
}

func TestValidateTools(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1", "")

	t.Run("valid file", func(t *testing.T) {
		out, _, err := run(t, "--config", cfgPath, "validate-tools", writeTools(t, weatherTool))
		require.NoError(t, err)
		assert.Contains(t, out, "1 tools, 0 errors")
	})

	t.Run("missing name", func(t *testing.T) {
		bad := writeTools(t, `[{"description":"nameless","parameters":{"type":"object"}}]`)
		out, _, err := run(t, "--config", cfgPath, "validate-tools", bad)
		require.Error(t, err)
		assert.Contains(t, out, "[ERROR]")
	})

	t.Run("suggest", func(t *testing.T) {
		out, _, err := run(t, "--config", cfgPath, "validate-tools", "--suggest", writeTools(t, weatherTool))
		require.NoError(t, err)
		assert.Contains(t, out, "suggested models:")
		assert.Contains(t, out, "draft-small")
	})

	t.Run("no file", func(t *testing.T) {
		_, _, err := run(t, "--config", cfgPath, "validate-tools")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tools.schema_file")
	})
}

func TestValidateTools_FromConfig(t *testing.T) {
	tools := writeTools(t, weatherTool)
	cfgPath := writeConfig(t, "http://127.0.0.1:1", fmt.Sprintf("\n[tools]\nschema_file = %q\n", tools))

	out, _, err := run(t, "--config", cfgPath, "validate-tools")
	require.NoError(t, err)
	assert.Contains(t, out, "1 tools")
}

func TestCheckConfig(t *testing.T) {
	t.Run("offline", func(t *testing.T) {
		cfgPath := writeConfig(t, "http://127.0.0.1:1", "")
		out, _, err := run(t, "--config", cfgPath, "check-config", "--offline", "--show")
		require.NoError(t, err)
		assert.Contains(t, out, "config ok: 2 models")
		assert.Contains(t, out, "draft-small")
	})

	t.Run("all models pulled", func(t *testing.T) {
		srv := fakeOllama(t, "draft-small:latest", "verifier-large")
		cfgPath := writeConfig(t, srv.URL, "")
		out, _, err := run(t, "--config", cfgPath, "check-config")
		require.NoError(t, err)
		assert.Equal(t, 2, strings.Count(out, "  ok   "))
	})

	t.Run("missing model", func(t *testing.T) {
		srv := fakeOllama(t, "draft-small")
		cfgPath := writeConfig(t, srv.URL, "")
		out, _, err := run(t, "--config", cfgPath, "check-config")
		require.Error(t, err)
		assert.Contains(t, out, "FAIL ollama/verifier-large")
		assert.Contains(t, err.Error(), "1 of 2")
	})
}

func TestLoad_InvalidConfig(t *testing.T) {
	cfgPath := writeConfig(t, "http://127.0.0.1:1", "\n[quality]\npreset = \"nonsense\"\n")

	_, _, err := run(t, "--config", cfgPath, "check-config", "--offline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestMain(m *testing.M) {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, config.EnvPrefix+"_") {
			os.Unsetenv(strings.SplitN(kv, "=", 2)[0])
		}
	}
	os.Exit(m.Run())
}
