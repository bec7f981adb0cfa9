// Package testdata holds recorded glove sessions for tests.
package testdata

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed glove/*
var gloveFS embed.FS

// LoadRecording loads a recorded glove session by name, without extension.
func LoadRecording(name string) ([]byte, error) {
	data, err := gloveFS.ReadFile("glove/" + name + ".jsonl")
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", name, err)
	}
	return data, nil
}

// LoadMessages loads a recording as individual glove messages.
func LoadMessages(name string) ([][]byte, error) {
	data, err := LoadRecording(name)
	if err != nil {
		return nil, err
	}

	var msgs [][]byte
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			msgs = append(msgs, append([]byte(nil), line...))
		}
	}
	return msgs, sc.Err()
}

// WriteRecording copies a recording into dir so a replay feed can open it,
// and returns the file path.
func WriteRecording(dir, name string) (string, error) {
	data, err := LoadRecording(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".jsonl")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write recording %s: %w", name, err)
	}
	return path, nil
}
