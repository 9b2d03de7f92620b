// pattern: Functional Core

package git

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PorcelainRecord is one block of `worktree list --porcelain` output.
// Flags such as "locked" or "prunable" are present with an empty value
// when git prints no reason; use Has to test them.
type PorcelainRecord map[string]string

// Has reports whether key was present in the block, whatever its value.
func (r PorcelainRecord) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// ParsePorcelain splits output into blank-line separated blocks of
// "<key> <value>" lines. Values keep everything after the first space.
// Empty blocks are dropped and block order is preserved.
func ParsePorcelain(out string) []PorcelainRecord {
	var records []PorcelainRecord
	current := PorcelainRecord{}

	flush := func() {
		if len(current) > 0 {
			records = append(records, current)
			current = PorcelainRecord{}
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		current[key] = value
	}
	flush()
	return records
}

// RefRecord is one ref from for-each-ref keyed by the requested field names
// (e.g. "refname", "objectname:short", "upstream:remoteref").
type RefRecord map[string]string

// dedupeFields drops repeated field names, keeping first occurrences.
func dedupeFields(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// RefFormat builds the --format argument for fields: one field="%(field)"
// pair per field, space separated.
func RefFormat(fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range dedupeFields(fields) {
		parts = append(parts, fmt.Sprintf(`%s="%%(%s)"`, f, f))
	}
	return strings.Join(parts, " ")
}

func refLineRegexp(fields []string) *regexp.Regexp {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, regexp.QuoteMeta(f)+`="(.*)"`)
	}
	return regexp.MustCompile("^" + strings.Join(parts, " ") + "$")
}

// ParseRefs parses output produced with RefFormat(fields). Fields must be
// given in the same order used for the format. A line that does not match
// makes the whole parse fail; callers treat that as "no refs".
func ParseRefs(fields []string, out string) ([]RefRecord, error) {
	fields = dedupeFields(fields)
	if len(fields) == 0 {
		return nil, nil
	}
	re := refLineRegexp(fields)

	var records []RefRecord
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := re.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("ref line %d does not match format: %q", i+1, line)
		}
		rec := make(RefRecord, len(fields))
		for j, f := range fields {
			rec[f] = m[j+1]
		}
		records = append(records, rec)
	}
	return records, nil
}

// StatusEntry is one line of `status --short`.
type StatusEntry struct {
	Index    byte   // staged status code
	WorkTree byte   // unstaged status code
	Path     string // destination path for renames
	OrigPath string // source path for renames and copies
}

// Untracked reports whether the entry is an untracked file.
func (e StatusEntry) Untracked() bool {
	return e.Index == '?' && e.WorkTree == '?'
}

// ParseShortStatus parses `status --short`: columns 0 and 1 are the status
// codes and the path starts at column 3.
func ParseShortStatus(out string) []StatusEntry {
	var entries []StatusEntry
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}
		e := StatusEntry{Index: line[0], WorkTree: line[1]}
		path := strings.TrimSpace(line[3:])
		if from, to, ok := strings.Cut(path, " -> "); ok && (e.Index == 'R' || e.Index == 'C') {
			e.OrigPath = unquotePath(from)
			path = to
		}
		e.Path = unquotePath(path)
		if e.Path == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func unquotePath(p string) string {
	if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
		if s, err := strconv.Unquote(p); err == nil {
			return s
		}
	}
	return p
}

var pruneLineRe = regexp.MustCompile(`^Removing worktrees/(.+?): (.*)$`)

// PruneReport is one line of `worktree prune --dry-run --verbose`.
type PruneReport struct {
	Name   string
	Reason string
}

// ParsePruneReport extracts the administrative names git would remove.
func ParsePruneReport(out string) []PruneReport {
	var reports []PruneReport
	for _, line := range strings.Split(out, "\n") {
		m := pruneLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		reports = append(reports, PruneReport{Name: m[1], Reason: m[2]})
	}
	return reports
}

// Remote is one remote from `remote -v`.
type Remote struct {
	Name     string `json:"name"`
	FetchURL string `json:"fetchUrl"`
	PushURL  string `json:"pushUrl"`
}

// ParseRemotes folds the fetch and push lines of `remote -v` into one
// Remote per name, in first-seen order.
func ParseRemotes(out string) []Remote {
	var remotes []Remote
	index := make(map[string]int)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, url := fields[0], fields[1]
		i, ok := index[name]
		if !ok {
			i = len(remotes)
			index[name] = i
			remotes = append(remotes, Remote{Name: name})
		}
		kind := ""
		if len(fields) > 2 {
			kind = strings.Trim(fields[2], "()")
		}
		switch kind {
		case "push":
			remotes[i].PushURL = url
		default:
			remotes[i].FetchURL = url
		}
	}
	return remotes
}

// AheadBehind counts commits on the left (ahead) and right (behind) side of
// a symmetric difference.
type AheadBehind struct {
	Ahead  int `json:"ahead"`
	Behind int `json:"behind"`
}

// ParseAheadBehind parses `rev-list --left-right --count` output. ok is false
// when the output is not exactly two counts.
func ParseAheadBehind(out string) (AheadBehind, bool) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return AheadBehind{}, false
	}
	ahead, err1 := strconv.Atoi(fields[0])
	behind, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil || ahead < 0 || behind < 0 {
		return AheadBehind{}, false
	}
	return AheadBehind{Ahead: ahead, Behind: behind}, true
}

// Commit is the summary of one commit used by detail views.
type Commit struct {
	Hash        string `json:"hash"`
	ShortHash   string `json:"shortHash"`
	AuthorName  string `json:"authorName"`
	AuthorEmail string `json:"authorEmail"`
	Date        string `json:"date"`
	Subject     string `json:"subject"`
}

// commitFormat separates fields with NUL so subjects may contain anything.
const commitFormat = "%H%x00%h%x00%an%x00%ae%x00%aI%x00%s"

func parseCommit(out string) (Commit, bool) {
	parts := strings.Split(strings.TrimRight(out, "\r\n"), "\x00")
	if len(parts) != 6 || parts[0] == "" {
		return Commit{}, false
	}
	return Commit{
		Hash:        parts[0],
		ShortHash:   parts[1],
		AuthorName:  parts[2],
		AuthorEmail: parts[3],
		Date:        parts[4],
		Subject:     parts[5],
	}, true
}
