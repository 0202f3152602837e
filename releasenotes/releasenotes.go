// Package releasenotes parses the bundled release notes file.
//
// The file is a constrained markdown subset: "##" lines are version
// headers, "-" lines are bullet points belonging to the preceding header,
// and blank lines close an entry. Anything else is a format error, which
// keeps typos from silently dropping notes.
package releasenotes

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yllada/vpn-client/common"
)

// Note is one release entry: a version title and its changes.
type Note struct {
	Title   string
	Bullets []string
}

// Empty reports whether the note carries no content.
func (n Note) Empty() bool {
	return n.Title == "" && len(n.Bullets) == 0
}

// Load reads and parses the release notes file at path.
func Load(path string) ([]Note, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, common.WrapError(err, "failed to open release notes")
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads release notes from r. The file must not be empty, and every
// line must be a header, a bullet point, or blank.
func Parse(r io.Reader) ([]Note, error) {
	scanner := bufio.NewScanner(r)

	var notes []Note
	var current Note
	empty := true

	flush := func() {
		if !current.Empty() {
			notes = append(notes, current)
		}
		current = Note{}
	}

	for scanner.Scan() {
		empty = false
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "##"):
			// A header opens a new entry even without a separating blank.
			if current.Title != "" {
				flush()
			}
			current.Title = sanitize(line)
		case strings.HasPrefix(line, "-"):
			if current.Title == "" {
				return nil, fmt.Errorf("bullet point %q has no preceding header", sanitize(line))
			}
			current.Bullets = append(current.Bullets, sanitize(line))
		case strings.TrimSpace(line) == "":
			flush()
		default:
			return nil, fmt.Errorf(
				"invalid release notes line %q: lines must start with '##', '-', or be blank", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, common.WrapError(err, "failed to read release notes")
	}
	if empty {
		return nil, errors.New("release notes file is empty")
	}
	flush()

	return notes, nil
}

func sanitize(line string) string {
	line = strings.ReplaceAll(line, "#", "")
	line = strings.TrimPrefix(strings.TrimSpace(line), "-")
	return strings.TrimSpace(line)
}
