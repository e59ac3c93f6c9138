package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goodnatureofminers/sealtransfer/internal/consignment"
)

// readInput reads path, or stdin when path is "-".
func readInput(in io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(path)
}

func readConsignment(in io.Reader, path string) (*consignment.Consignment, error) {
	data, err := readInput(in, path)
	if err != nil {
		return nil, fmt.Errorf("read consignment: %w", err)
	}
	c, err := consignment.Load(data)
	if err != nil {
		return nil, fmt.Errorf("load consignment %s: %w", path, err)
	}
	return c, nil
}

func encodeConsignment(c *consignment.Consignment, armored bool) ([]byte, error) {
	if !armored {
		return consignment.Marshal(c)
	}
	var buf bytes.Buffer
	if err := consignment.Armor(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeOutput writes data to path, or to out when path is empty or "-".
func writeOutput(out io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := out.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
