// Command forecast runs a single forecast request file through the forecasting
// core and writes the JSON response. It uses the same request envelope the
// streaming worker consumes.
//
// Usage:
//
//	go run ./cmd/forecast \
//	  -in cmd/forecast/testdata/demand_bornova.json \
//	  -out result.json \
//	  -now 2024-06-15T00:00:00Z
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/couchcryptid/reservoir-forecast-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	in := fs.String("in", "-", "request JSON file, - for stdin")
	out := fs.String("out", "-", "output path for the response JSON, - for stdout")
	now := fs.String("now", "", "fixed RFC3339 time for the current month and processed_at")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *now != "" {
		at, err := time.Parse(time.RFC3339, *now)
		if err != nil {
			return fmt.Errorf("invalid -now: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(at))
		defer domain.SetClock(nil)
	}

	data, err := readInput(*in, stdin)
	if err != nil {
		return err
	}

	req, err := domain.ParseRequest(domain.RawEvent{Value: data})
	if err != nil {
		return err
	}
	resp := domain.Execute(req)

	encoded, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	encoded = append(encoded, '\n')

	if *out == "-" {
		_, err = stdout.Write(encoded)
		return err
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	log.Printf("%s %s: wrote %s", resp.Kind, resp.ID, *out)
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
