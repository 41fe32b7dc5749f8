package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ZapHistoryEntry is one paid (or handed-off) zap in the local history log.
type ZapHistoryEntry struct {
	Time       time.Time
	Recipient  string // hex pubkey
	AmountSats int64
	Via        string // payment channel name, or "manual"
	EventID    string // zapped event id or address
	Comment    string
}

// escapeContent escapes newlines and backslashes for single-line log storage.
// Backslash is escaped first to avoid double-escaping.
func escapeContent(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// unescapeContent reverses escapeContent.
func unescapeContent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if i+1 < len(s) && s[i] == '\\' {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i += 2
				continue
			case '\\':
				b.WriteByte('\\')
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// appendZapHistory appends a paid zap to the history log. History is best
// effort; failures are logged and never fail the payment flow.
func appendZapHistory(path string, entry ZapHistoryEntry) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Printf("history: failed to create dir: %v", err)
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("history: failed to open %s: %v", path, err)
		return
	}
	defer f.Close()

	ts := entry.Time.UTC().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("%s\t%s\t%d\t%s\t%s\t%s\n",
		ts, entry.Recipient, entry.AmountSats, entry.Via, entry.EventID, escapeContent(entry.Comment))
	if _, err := f.WriteString(line); err != nil {
		log.Printf("history: failed to write to %s: %v", path, err)
	}
}

// loadZapHistory loads the last n entries from the history log using
// backward seeking for efficiency on large files.
func loadZapHistory(path string, n int) ([]ZapHistoryEntry, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := readLastNLines(f, n)
	if err != nil {
		return nil, fmt.Errorf("history: read %s: %w", path, err)
	}

	entries := make([]ZapHistoryEntry, 0, len(lines))
	for _, line := range lines {
		entry, err := parseHistoryLine(line)
		if err != nil {
			log.Printf("history: skipping malformed line in %s: %v", path, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// readLastNLines reads the last n lines from a file by seeking backward.
func readLastNLines(f *os.File, n int) ([]string, error) {
	const chunkSize = 8192

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size == 0 {
		return nil, nil
	}

	var buf []byte
	offset := size
	linesFound := 0

	for offset > 0 && linesFound <= n {
		readSize := int64(chunkSize)
		if readSize > offset {
			readSize = offset
		}
		offset -= readSize

		chunk := make([]byte, readSize)
		if _, err := f.ReadAt(chunk, offset); err != nil && err != io.EOF {
			return nil, err
		}

		buf = append(chunk, buf...)

		for _, b := range chunk {
			if b == '\n' {
				linesFound++
			}
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(string(buf)))
	var allLines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			allLines = append(allLines, line)
		}
	}

	if len(allLines) > n {
		allLines = allLines[len(allLines)-n:]
	}
	return allLines, nil
}

// parseHistoryLine parses a single tab-separated history line.
func parseHistoryLine(line string) (ZapHistoryEntry, error) {
	parts := strings.SplitN(line, "\t", 6)
	if len(parts) < 6 {
		return ZapHistoryEntry{}, fmt.Errorf("expected 6 tab-separated fields, got %d", len(parts))
	}

	ts, err := time.Parse("2006-01-02 15:04:05", parts[0])
	if err != nil {
		return ZapHistoryEntry{}, fmt.Errorf("invalid timestamp %q: %w", parts[0], err)
	}

	sats, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return ZapHistoryEntry{}, fmt.Errorf("invalid amount %q: %w", parts[2], err)
	}

	return ZapHistoryEntry{
		Time:       ts,
		Recipient:  parts[1],
		AmountSats: sats,
		Via:        parts[3],
		EventID:    parts[4],
		Comment:    unescapeContent(parts[5]),
	}, nil
}
