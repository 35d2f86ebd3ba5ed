package logstore

import (
	"os"
	"path/filepath"
)

// Log represents one collection's backing file: a path, and the sparse
// LinesIndex built over it. Log does not serialize access itself — Logger
// is the sole writer, and each Scanner worker opens its own independent
// reader against the same path.
type Log struct {
	name        string
	path        string
	granularity uint64
	index       *LinesIndex
}

// Open resolves name to a path under logsPath. It does not touch the
// filesystem; call EnsureExists or ComputeIndex to do that.
func Open(logsPath, name string, granularity uint64) *Log {
	return &Log{
		name:        name,
		path:        filepath.Join(logsPath, name+".log"),
		granularity: granularity,
		index:       NewLinesIndex(granularity),
	}
}

func (l *Log) Name() string        { return l.name }
func (l *Log) Path() string        { return l.path }
func (l *Log) Granularity() uint64 { return l.granularity }
func (l *Log) Index() *LinesIndex  { return l.index }

// EnsureExists creates an empty file at Path if none exists yet.
func (l *Log) EnsureExists() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// OpenWriter opens the log for appending and returns a LineWriter positioned
// at the file's current size.
func (l *Log) OpenWriter() (*LineWriter, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return NewLineWriter(f, uint64(info.Size())), nil
}

// OpenReader opens an independent read-only descriptor, for a Scanner worker.
func (l *Log) OpenReader() (*IndexedLineReader, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	return NewIndexedLineReader(f, l.index), nil
}

// ComputeIndex does a full forward scan to (re)build the in-memory index,
// returning the line count and byte size currently on disk. Called once
// when a collection is opened so a Logger recovers offset/bytes_written
// correctly after a process restart, rather than assuming an empty file.
func (l *Log) ComputeIndex() (lineCount, byteCount uint64, err error) {
	if err := l.EnsureExists(); err != nil {
		return 0, 0, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	r := NewIndexedLineReader(f, l.index)
	n, err := r.RefreshIndex()
	if err != nil {
		return 0, 0, err
	}
	info, err := os.Stat(l.path)
	if err != nil {
		return 0, 0, err
	}
	return n, uint64(info.Size()), nil
}

// Remove deletes the backing file, used by Collection.Truncate and Close.
// It fails if the file does not exist, matching exar-core's remove_file
// (std::fs::remove_file errors on a missing path) rather than treating a
// second removal as a no-op.
func (l *Log) Remove() error {
	return os.Remove(l.path)
}
