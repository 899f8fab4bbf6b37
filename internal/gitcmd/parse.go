package gitcmd

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// logFormat delimits commit records with \x1e and fields with \x1f so
// messages containing newlines or tabs cannot break parsing. Fields:
// hash, author, committer, commit time (unix), subject.
const logFormat = "%x1e%H%x1f%an%x1f%cn%x1f%ct%x1f%s"

// parseLog parses `git log --numstat` output in logFormat into commits.
func parseLog(out []byte) ([]Commit, error) {
	var commits []Commit

	for _, record := range strings.Split(string(out), "\x1e") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}

		// Header line, then numstat lines.
		header := record
		var statLines []string
		if idx := strings.IndexByte(record, '\n'); idx >= 0 {
			header = record[:idx]
			statLines = strings.Split(record[idx+1:], "\n")
		}

		fields := strings.Split(header, "\x1f")
		if len(fields) != 5 {
			return nil, fmt.Errorf("malformed log record: %q", header)
		}

		ts, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed commit timestamp %q: %w", fields[3], err)
		}

		commit := Commit{
			Hash:      fields[0],
			Author:    fields[1],
			Committer: fields[2],
			Timestamp: time.Unix(ts, 0).UTC(),
			Message:   fields[4],
		}

		for _, line := range statLines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			change, err := parseNumstatLine(line)
			if err != nil {
				return nil, err
			}
			commit.Files = append(commit.Files, change)
		}

		commits = append(commits, commit)
	}
	return commits, nil
}

// parseNumstatLine parses one "insertions\tdeletions\tpath" line. Binary
// files report "-" for both counts.
func parseNumstatLine(line string) (FileChange, error) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return FileChange{}, fmt.Errorf("malformed numstat line: %q", line)
	}

	change := FileChange{Filename: parts[2]}
	if parts[0] == "-" || parts[1] == "-" {
		change.Binary = true
		return change, nil
	}

	insertions, err := strconv.Atoi(parts[0])
	if err != nil {
		return FileChange{}, fmt.Errorf("malformed numstat line: %q", line)
	}
	deletions, err := strconv.Atoi(parts[1])
	if err != nil {
		return FileChange{}, fmt.Errorf("malformed numstat line: %q", line)
	}
	change.Insertions = insertions
	change.Deletions = deletions
	return change, nil
}

// parseBlame parses `git blame --line-porcelain` output. Line-porcelain
// repeats the full commit metadata before every line, so each content
// line (prefixed with a tab) closes one record.
func parseBlame(out []byte) ([]BlameLine, error) {
	var lines []BlameLine
	var current BlameLine

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "\t"):
			// Content line terminates the current record.
			lines = append(lines, current)
			current = BlameLine{}
		case strings.HasPrefix(line, "committer "):
			current.Committer = strings.TrimPrefix(line, "committer ")
		case strings.HasPrefix(line, "committer-time "):
			ts, err := strconv.ParseInt(strings.TrimPrefix(line, "committer-time "), 10, 64)
			if err == nil {
				current.CommitterTime = time.Unix(ts, 0).UTC()
			}
		case len(line) >= 40 && isHex(line[:40]) && current.CommitHash == "":
			fields := strings.Fields(line)
			current.CommitHash = fields[0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan blame output: %w", err)
	}
	return lines, nil
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
