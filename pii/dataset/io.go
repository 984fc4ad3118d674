// Package dataset reads parallel template/rendered line files, turns them into
// labeled examples and manages the JSONL files the examples are stored in.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hannes/kiji-autolabel/pii/align"
)

// maxLineSize caps a single input line.
const maxLineSize = 16 * 1024 * 1024

// ErrLineCountMismatch is returned when the template and rendered inputs do not
// have the same number of lines. No alignment is attempted in that case.
var ErrLineCountMismatch = errors.New("template and rendered inputs must have the same number of lines")

// LinePair is one template line and the rendered line produced from it.
type LinePair struct {
	Line     int // 1-based line number in both files
	Template string
	Rendered string
}

// ReadLines returns the lines of path without their line terminators.
func ReadLines(path string) ([]string, error) {
	// #nosec G304 - input paths come from the operator's command line
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

func readLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ReadLinePairs reads the two parallel files and pairs their lines.
func ReadLinePairs(templatePath, renderedPath string) ([]LinePair, error) {
	templates, err := ReadLines(templatePath)
	if err != nil {
		return nil, err
	}
	rendered, err := ReadLines(renderedPath)
	if err != nil {
		return nil, err
	}
	return PairLines(templates, rendered)
}

// PairLines pairs two equally long slices of lines.
func PairLines(templates, rendered []string) ([]LinePair, error) {
	if len(templates) != len(rendered) {
		return nil, fmt.Errorf("%w: %d template lines, %d rendered lines", ErrLineCountMismatch, len(templates), len(rendered))
	}
	pairs := make([]LinePair, len(templates))
	for i := range templates {
		pairs[i] = LinePair{Line: i + 1, Template: templates[i], Rendered: rendered[i]}
	}
	return pairs, nil
}

// ReadJSONL decodes one example per non-blank line of path.
func ReadJSONL(path string) ([]Example, error) {
	// #nosec G304 - input paths come from the operator's command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var examples []Example
	for i, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ex Example
		if err := json.Unmarshal([]byte(line), &ex); err != nil {
			return nil, fmt.Errorf("%s:%d: failed to decode example: %w", path, i+1, err)
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

// MarshalJSONL encodes examples one per line, joined by newlines, without a
// trailing newline. Non-ASCII text is written as UTF-8 and HTML characters are
// not escaped.
func MarshalJSONL(examples []Example) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, ex := range examples {
		if ex.Entities == nil {
			ex.Entities = []align.Span{}
		}
		if err := enc.Encode(ex); err != nil {
			return nil, fmt.Errorf("failed to encode example: %w", err)
		}
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// WriteJSONL writes examples to path atomically: the data goes to a temporary
// file in the same directory which is then renamed over path.
func WriteJSONL(path string, examples []Example) error {
	data, err := MarshalJSONL(examples)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
