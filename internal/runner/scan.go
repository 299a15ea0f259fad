package runner

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/vk/ctwgo/internal/protocol"
)

// LastClass returns the last class progress line in r. Later lines win,
// even when an index repeats.
func LastClass(r io.Reader) (index int64, name string, found bool, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if i, n, ok := protocol.ParseClassLine(sc.Text()); ok {
			index, name, found = i, n, true
		}
	}
	if err := sc.Err(); err != nil {
		return 0, "", false, err
	}
	return index, name, found, nil
}

// LastClassInFile is LastClass over a phase log.
func LastClassInFile(path string) (int64, string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to open phase log: %w", err)
	}
	defer f.Close()
	return LastClass(f)
}
