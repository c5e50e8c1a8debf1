// mkfixture writes a synthetic CSV file for one destination, optionally
// sprinkled with invalid and malformed rows, or checks an existing file.
// Usage: go run ./cmd/mkfixture --dest commit --rows 2000000 --out testdata/commits.csv
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AndriyPolukhin/app-aiv/internal/csvread"
	"github.com/AndriyPolukhin/app-aiv/internal/model"
	"github.com/AndriyPolukhin/app-aiv/internal/transform"
)

func main() {
	destName := flag.String("dest", "engineer", "destination to generate rows for")
	out := flag.String("out", "testdata/fixture.csv", "output csv")
	rows := flag.Int("rows", 1000, "data rows to write")
	badEvery := flag.Int("bad-every", 0, "make every Nth row invalid and every 2Nth malformed (0 = never)")
	seed := flag.Uint64("seed", 1, "random seed")
	checkOnly := flag.Bool("check", false, "validate --out against --dest instead of writing")
	flag.Parse()

	dest, ok := model.DestinationByName(*destName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown destination %q\n", *destName)
		os.Exit(1)
	}

	if *checkOnly {
		st, err := checkFile(*out, dest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "check: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Lines: %d, valid: %d, invalid: %d, malformed: %d\n", st.rows, st.valid, st.invalid, st.malformed)
		return
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	st, err := writeFixture(w, dest, *rows, *badEvery, *seed)
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d rows to %s (%d invalid, %d malformed)\n", st.rows, *out, st.invalid, st.malformed)
}

type fixtureStats struct {
	rows, valid, invalid, malformed int
}

// writeFixture writes a header and rows data lines for dest.
func writeFixture(w io.Writer, dest model.Destination, rows, badEvery int, seed uint64) (fixtureStats, error) {
	var st fixtureStats
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := fmt.Fprintln(w, strings.Join(dest.ColumnNames(), ",")); err != nil {
		return st, err
	}

	fields := make([]string, len(dest.Columns))
	for i := 1; i <= rows; i++ {
		for j, c := range dest.Columns {
			fields[j] = fixtureValue(rng, c, j == 0, i, base)
		}
		line := strings.Join(fields, ",")

		switch {
		case badEvery > 0 && i%(2*badEvery) == 0:
			line += ",extra"
			st.malformed++
		case badEvery > 0 && i%badEvery == 0:
			// Blank first column: every destination requires it.
			line = strings.Join(append([]string{""}, fields[1:]...), ",")
			st.invalid++
		default:
			st.valid++
		}
		st.rows++
		if _, err := fmt.Fprintln(w, line); err != nil {
			return st, err
		}
	}
	return st, nil
}

// fixtureValue renders one field. The first column of every destination is
// its key and gets the row number.
func fixtureValue(rng *rand.Rand, c model.Column, key bool, row int, base time.Time) string {
	if key && c.Kind == model.KindInt {
		return strconv.Itoa(row)
	}
	switch c.Kind {
	case model.KindInt:
		return strconv.Itoa(1 + rng.IntN(500))
	case model.KindDate:
		if !c.Required && rng.IntN(4) == 0 {
			return ""
		}
		return base.Add(time.Duration(rng.IntN(700*24)) * time.Hour).Format("2006-01-02")
	case model.KindBool:
		return strconv.FormatBool(rng.IntN(2) == 0)
	}
	switch c.Name {
	case "commit_id":
		return fmt.Sprintf("%040x", uint64(row)*0x9e3779b97f4a7c15)
	case "engineer_ids":
		return fmt.Sprintf("\"%d,%d,%d\"", 1+rng.IntN(500), 1+rng.IntN(500), 1+rng.IntN(500))
	}
	return fmt.Sprintf("\"%s %d\"", strings.ReplaceAll(c.Name, "_", " "), row)
}

func checkFile(path string, dest model.Destination) (fixtureStats, error) {
	var st fixtureStats
	r, err := csvread.Open(path)
	if err != nil {
		return st, err
	}
	defer r.Close()

	line, ok := r.Next()
	if !ok {
		return st, fmt.Errorf("%s has no header", path)
	}
	header := csvread.ParseLine(line)
	row := make(map[string]string, len(header))
	for {
		line, ok := r.Next()
		if !ok {
			break
		}
		st.rows++
		fields := csvread.ParseLine(line)
		if len(fields) != len(header) {
			st.malformed++
			continue
		}
		for i, h := range header {
			row[h] = fields[i]
		}
		if _, err := transform.Transform(row, dest); err != nil {
			st.invalid++
			continue
		}
		st.valid++
	}
	return st, r.Err()
}
