package formats

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"

	"gopkg.in/cheggaaa/pb.v2"

	"github.com/pteich/elastic-frame/frame"
)

var lineBreaks = regexp.MustCompile(`\x{000D}\x{000A}|[\x{000A}\x{000B}\x{000C}\x{000D}\x{0085}\x{2028}\x{2029}]`)

type CSV struct {
	Fields      []string
	ProgressBar *pb.ProgressBar
}

func (c CSV) Write(ctx context.Context, w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)

	header := columns(f, c.Fields)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	record := make([]string, len(header))
	for i := 0; i < f.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j, col := range header {
			record[j] = formatCell(f.Get(i, col))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
		increment(c.ProgressBar)
	}

	cw.Flush()
	return cw.Error()
}

func formatCell(val any) string {
	switch val := val.(type) {
	case nil:
		return ""
	case string:
		return removeLBR(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		d := int64(val)
		if val == float64(d) {
			return strconv.FormatInt(d, 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any, map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return removeLBR(fmt.Sprintf("%v", val))
		}
		return string(b)
	default:
		return removeLBR(fmt.Sprintf("%v", val))
	}
}

func removeLBR(text string) string {
	return lineBreaks.ReplaceAllString(text, ``)
}

// ReadCSV reads a CSV file with a header line. Cells are typed: integers as
// int64, other numbers as float64, true/false as bool and empty cells as nil.
func ReadCSV(r io.Reader) (*frame.Frame, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return frame.Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	f, err := frame.New(header...)
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cr.ReuseRecord = true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}

		row := make([]any, len(rec))
		for i, cell := range rec {
			row[i] = parseCell(cell)
		}
		if err := f.Append(row...); err != nil {
			return nil, err
		}
	}
}

func parseCell(cell string) any {
	if cell == "" {
		return nil
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if fl, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(fl) && !math.IsInf(fl, 0) {
		return fl
	}
	switch cell {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}
