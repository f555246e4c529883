package readout

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// csvChannel is one append-only CSV output file. The header is written only
// when the file on disk is new or empty, so re-opening an existing file in a
// later run (or a later process) never repeats it.
type csvChannel struct {
	Filename      string
	header        []string
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
}

func openChannel(filename string, header []string) (*csvChannel, error) {
	headerPending, err := needsHeader(filename)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}

	channel := &csvChannel{
		Filename: filename,
		header:   header,
		file:     file,
		writer:   csv.NewWriter(file),
	}
	if headerPending {
		if err := channel.writeHeader(); err != nil {
			file.Close()
			return nil, &ErrWriteHeader{Filename: filename, Err: err}
		}
	}
	return channel, nil
}

func needsHeader(filename string) (bool, error) {
	info, err := os.Stat(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", filename)
	}
	return info.Size() == 0, nil
}

func (c *csvChannel) writeHeader() error {
	if err := c.writer.Write(c.header); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	c.headerWritten = true
	return nil
}

func (c *csvChannel) Write(row []string) error {
	if c.file == nil {
		return fmt.Errorf("write to closed channel %s", c.Filename)
	}
	return c.writer.Write(row)
}

func (c *csvChannel) Flush() error {
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the file. Calling it again is a no-op.
func (c *csvChannel) Close() error {
	if c.file == nil {
		return nil
	}
	flushErr := c.Flush()
	closeErr := c.file.Close()
	c.file = nil
	if flushErr != nil || closeErr != nil {
		return errors.Join(flushErr, closeErr)
	}
	return nil
}
