package filerep

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// spool buffers a serialized record in memory and moves it to a
// temporary file once it grows past threshold
type spool struct {
	dir       string
	threshold int64

	buf  bytes.Buffer
	file *os.File
	size int64

	reader io.ReadSeeker
}

func newSpool(dir string, threshold int64) *spool {
	return &spool{dir: dir, threshold: threshold}
}

func (s *spool) Write(p []byte) (int, error) {
	if s.file == nil && s.threshold > 0 && int64(s.buf.Len()+len(p)) > s.threshold {
		if err := s.moveToFile(); err != nil {
			return 0, err
		}
	}

	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.buf.Write(p)
	}
	s.size += int64(n)
	return n, err
}

func (s *spool) moveToFile() error {
	f, err := os.CreateTemp(s.dir, "dexterity-spool-*")
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}
	if _, err := f.Write(s.buf.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to write spool file: %w", err)
	}
	s.buf = bytes.Buffer{}
	s.file = f
	return nil
}

// rewind switches the spool to reading from the start
func (s *spool) rewind() error {
	if s.file == nil {
		s.reader = bytes.NewReader(s.buf.Bytes())
		return nil
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	s.reader = s.file
	return nil
}

func (s *spool) spooled() bool {
	return s.file != nil
}

func (s *spool) Close() error {
	if s.file == nil {
		s.buf = bytes.Buffer{}
		s.reader = nil
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	s.file = nil
	s.reader = nil
	return err
}
