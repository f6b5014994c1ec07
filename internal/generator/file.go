package generator

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"passfuse/internal/candidate"
	"passfuse/internal/identity"
)

const maxLineBytes = 1024 * 1024

type segment struct {
	offset int64
	length int64
}

// File serves pre-computed answer files: one block of "password[\tscore]"
// lines per identity, blocks separated by "<END>" lines, block i belonging to
// the i-th target. The block index is built once; every Generate call opens
// its own reader over the block.
type File struct {
	name     string
	path     string
	segments []segment
}

// NewFile indexes path.
func NewFile(name, path string) (*File, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open answer file: %w", err)
	}
	defer handle.Close()

	segments, err := indexSegments(handle)
	if err != nil {
		return nil, fmt.Errorf("index answer file %s: %w", path, err)
	}
	return &File{name: name, path: path, segments: segments}, nil
}

func indexSegments(r io.Reader) ([]segment, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	separator := []byte(candidate.SegmentSeparator)

	var (
		segments   []segment
		offset     int64
		start      int64
		content    bool
		continuing bool
	)
	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Over-long line: keep consuming until its end.
			offset += int64(len(line))
			content = true
			continuing = true
			continue
		}
		if len(line) > 0 {
			trimmed := bytes.TrimSpace(line)
			if !continuing && bytes.Equal(trimmed, separator) {
				segments = append(segments, segment{offset: start, length: offset - start})
				offset += int64(len(line))
				start = offset
				content = false
			} else {
				offset += int64(len(line))
				if len(trimmed) > 0 {
					content = true
				}
			}
		}
		continuing = false
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if content {
		segments = append(segments, segment{offset: start, length: offset - start})
	}
	return segments, nil
}

func (f *File) Name() string { return f.name }

func (f *File) Required() []identity.Field { return nil }

// Segments returns the number of indexed identity blocks.
func (f *File) Segments() int { return len(f.segments) }

// Generate streams the block belonging to rec. Records parsed from a targets
// file map by input position; records built directly map by numeric key.
func (f *File) Generate(_ context.Context, rec identity.Record) (candidate.Stream, error) {
	pos := rec.Index()
	if pos == 0 {
		n, err := strconv.Atoi(rec.Key())
		if err != nil {
			return nil, fmt.Errorf("identity %q has no input position", rec.Key())
		}
		pos = n
	}
	if pos < 1 || pos > len(f.segments) {
		return nil, fmt.Errorf("answer file %s has %d blocks, identity %q needs block %d", f.path, len(f.segments), rec.Key(), pos)
	}
	seg := f.segments[pos-1]

	handle, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open answer file: %w", err)
	}
	scanner := bufio.NewScanner(io.NewSectionReader(handle, seg.offset, seg.length))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	next := func() (string, bool, error) {
		if scanner.Scan() {
			return scanner.Text(), true, nil
		}
		return "", false, scanner.Err()
	}
	return candidate.NewRanked(f.name, next, candidate.ParseLine, handle.Close), nil
}
