package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const memoryFile = "MEMORY.md"

// systemPrompt is rebuilt for each request so notes saved mid-session are
// picked up.
func systemPrompt(cwd, notesDir string) string {
	var sb strings.Builder
	sb.WriteString("Concise coding assistant. cwd: " + cwd)
	if mem := loadMemory(notesDir); mem != "" {
		sb.WriteString("\n\n")
		sb.WriteString(mem)
	}
	return sb.String()
}

func loadMemory(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, memoryFile))
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return ""
	}
	return "## Project notes\n" + strings.TrimSpace(string(data)) + "\n"
}

func appendMemory(dir, text string, now time.Time) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, memoryFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "\n## %s\n- %s\n", now.Format("2006-01-02"), text)
	return err
}
