package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), configDirName)
	assert.Equal(t, "Concise coding assistant. cwd: /src", systemPrompt("/src", dir))

	day := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	require.NoError(t, appendMemory(dir, "tests run with make test", day))
	require.NoError(t, appendMemory(dir, "prefer table tests", day.AddDate(0, 0, 1)))

	data, err := os.ReadFile(filepath.Join(dir, memoryFile))
	require.NoError(t, err)
	assert.Equal(t, "\n## 2026-03-14\n- tests run with make test\n\n## 2026-03-15\n- prefer table tests\n", string(data))

	prompt := systemPrompt("/src", dir)
	assert.Equal(t, "Concise coding assistant. cwd: /src\n\n## Project notes\n## 2026-03-14\n- tests run with make test\n\n## 2026-03-15\n- prefer table tests\n", prompt)
}
