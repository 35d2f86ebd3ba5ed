package logstore

import (
	"bufio"
	"os"
)

// LineWriter appends lines to a log file, flushing after every write. It
// does not fsync — durability beyond "survives a clean process restart" is
// explicitly out of scope (spec.md Non-goals).
type LineWriter struct {
	file *os.File
	bw   *bufio.Writer
	pos  uint64 // byte offset the next write will land at
}

func NewLineWriter(f *os.File, startOffset uint64) *LineWriter {
	return &LineWriter{file: f, bw: bufio.NewWriter(f), pos: startOffset}
}

// WriteLine appends line plus a trailing newline and flushes immediately,
// returning the number of bytes written (including the newline).
func (w *LineWriter) WriteLine(line string) (uint64, error) {
	n, err := w.bw.WriteString(line)
	if err != nil {
		return 0, err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return 0, err
	}
	if err := w.bw.Flush(); err != nil {
		return 0, err
	}
	written := uint64(n) + 1
	w.pos += written
	return written, nil
}

// Pos reports the current byte offset (end of file, from this writer's view).
func (w *LineWriter) Pos() uint64 { return w.pos }

func (w *LineWriter) Close() error { return w.file.Close() }
