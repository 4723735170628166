package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/backends/lorem"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_AgainstMockBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)
	color.NoColor = true
	backend := lorem.NewServer(lorem.WithChunks(4), lorem.WithCitations(2))
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	t.Chdir(t.TempDir())
	t.Setenv("DOCSEARCH_API_BASE_URL", srv.URL+"/api")
	t.Setenv("DOCSEARCH_TOKEN_FILE", filepath.Join(t.TempDir(), "token.yaml"))
	t.Setenv("DOCSEARCH_LOG_LEVEL", "error")

	out, err := run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not signed in")

	out, err = run(t, "login", "--id-token", lorem.DefaultIDToken)
	require.NoError(t, err)
	assert.Contains(t, out, "signed in as Mock Reader")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "reader@example.com")

	out, err = run(t, "ask", "who", "travelled", "--docs", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Sources")
	assert.Contains(t, out, "Documents")
	assert.Contains(t, out, `docsearch_stream_outcomes_total{outcome=completed} 1`)

	out, err = run(t, "search", "flight", "records", "--doc-type", "email", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "(filtered)")

	out, err = run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "flight records")

	out, err = run(t, "doc", backend.Documents()[0].ID, "--related", "1")
	require.NoError(t, err)
	assert.Contains(t, out, backend.Documents()[0].EFTAID)
	assert.Contains(t, out, "Related")

	_, err = run(t, "doc", "missing", "--related", "0")
	assert.ErrorIs(t, err, docsearch.ErrNotFound)

	out, err = run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "signed out")

	_, err = run(t, "history")
	assert.ErrorIs(t, err, docsearch.ErrUnauthorized)
}

func TestAnswerPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &answerPrinter{w: &buf}
	p.update(docsearch.StreamState{Answer: "The"})
	p.update(docsearch.StreamState{Answer: "The"})
	p.update(docsearch.StreamState{Answer: "The documents show"})
	assert.Equal(t, "The documents show", buf.String())
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine(" a\n b\tc ", 10))
	assert.Equal(t, "abc…", oneLine("abcdef", 3))
}
