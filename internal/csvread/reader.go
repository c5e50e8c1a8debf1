package csvread

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// MaxLineBytes caps a single line; longer lines fail the read.
const MaxLineBytes = 16 * 1024 * 1024

// Reader streams a delimited text file one line at a time. A leading
// UTF-8 BOM is dropped and invalid UTF-8 is replaced with U+FFFD.
type Reader struct {
	file    *os.File
	scanner *bufio.Scanner
	line    int64
}

// Open opens path for line reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	r := NewReader(f)
	r.file = f
	return r, nil
}

// NewReader wraps an arbitrary reader. Close is a no-op for readers that
// were not opened by Open.
func NewReader(src io.Reader) *Reader {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	sc := bufio.NewScanner(transform.NewReader(src, dec))
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	return &Reader{scanner: sc}
}

// Next returns the next line without its terminator. ok is false at EOF
// or on error; check Err afterwards.
func (r *Reader) Next() (line string, ok bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	r.line++
	return strings.TrimSuffix(r.scanner.Text(), "\r"), true
}

// Line is the 1-based number of the line last returned by Next.
func (r *Reader) Line() int64 {
	return r.line
}

// Err returns the first read error, if any.
func (r *Reader) Err() error {
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// ReadHeader returns the parsed first line of the file.
func ReadHeader(path string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	line, ok := r.Next()
	if !ok {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("read header: %s is empty", path)
	}
	return ParseLine(line), nil
}

// CountLines counts lines the way a line reader would: a final line
// without a trailing newline still counts.
func CountLines(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file for count: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 256*1024)
	var (
		count int64
		last  byte
		seen  bool
	)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			count += int64(bytes.Count(buf[:n], []byte{'\n'}))
			last = buf[n-1]
			seen = true
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, fmt.Errorf("count lines: %w", readErr)
		}
	}
	if seen && last != '\n' {
		count++
	}
	return count, nil
}

// Fingerprint returns the hex-encoded xxh3 digest of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for fingerprint: %w", err)
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint file: %w", err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
