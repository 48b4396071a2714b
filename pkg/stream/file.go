package stream

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// bufferedFile is a created-or-truncated file behind a bufio.Writer.
type bufferedFile struct {
	path       string
	file       *os.File
	writer     *bufio.Writer
	bufferSize int
}

func newBufferedFile(path string, bufferSize int) *bufferedFile {
	return &bufferedFile{path: path, bufferSize: bufferSize}
}

// Open creates the file, truncating any previous content.
func (bf *bufferedFile) Open() error {
	file, err := os.OpenFile(bf.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", bf.path, err)
	}

	bf.file = file
	if bf.bufferSize > 0 {
		bf.writer = bufio.NewWriterSize(file, bf.bufferSize)
	} else {
		bf.writer = bufio.NewWriter(file)
	}
	return nil
}

func (bf *bufferedFile) Write(p []byte) (int, error) {
	return bf.writer.Write(p)
}

// Flush flushes the buffered writer.
func (bf *bufferedFile) Flush() error {
	if bf.writer == nil {
		return nil
	}
	return bf.writer.Flush()
}

// Sync flushes the buffer and syncs the file to disk.
func (bf *bufferedFile) Sync() error {
	if err := bf.Flush(); err != nil {
		return err
	}
	if bf.file == nil {
		return nil
	}
	return bf.file.Sync()
}

// Close flushes and closes the file. Calling it again is a no-op.
func (bf *bufferedFile) Close() error {
	if bf.file == nil {
		return nil
	}
	flushErr := bf.Flush()
	closeErr := bf.file.Close()
	bf.file = nil
	bf.writer = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// writeLines writes one entry per line.
func writeLines(path string, lines []string) error {
	bf := newBufferedFile(path, 0)
	if err := bf.Open(); err != nil {
		return err
	}
	for _, l := range lines {
		if strings.ContainsAny(l, "\r\n") {
			bf.Close()
			return fmt.Errorf("id %q contains a line break", l)
		}
		if _, err := bf.writer.WriteString(l); err != nil {
			bf.Close()
			return err
		}
		if err := bf.writer.WriteByte('\n'); err != nil {
			bf.Close()
			return err
		}
	}
	return bf.Close()
}

// readLines reads a sidecar written by writeLines.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
