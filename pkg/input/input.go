package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/wasilibs/go-re2"
)

var (
	ErrNoWords       = errors.New("no valid words found in wordlist")
	ErrNoDomains     = errors.New("no valid base domains found")
	ErrStdinTerminal = errors.New("no domains provided and stdin is a terminal")
)

// Filter selects which normalized words are kept.
type Filter struct {
	// Pattern is an RE2 expression matched anywhere in the word.
	Pattern string
	// CaseInsensitive prefixes the pattern with (?i).
	CaseInsensitive bool
}

func (f Filter) compile() (*re2.Regexp, error) {
	if f.Pattern == "" {
		return nil, nil
	}
	pattern := f.Pattern
	if f.CaseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := re2.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile regex %q: %w", f.Pattern, err)
	}
	return re, nil
}

// NormalizeWord trims whitespace, lower-cases and strips leading and
// trailing dots.
func NormalizeWord(word string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(word)), ".")
}

// ReadWordlist loads the wordlist at path. Words are normalized, filtered and
// deduplicated in first-seen order; blank lines and # comments are skipped.
func ReadWordlist(path string, filter Filter) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist %s: %w", path, err)
	}
	defer file.Close()

	words, err := ParseWordlist(file, filter)
	if err != nil {
		return nil, fmt.Errorf("read wordlist %s: %w", path, err)
	}
	return words, nil
}

// ParseWordlist is ReadWordlist over an arbitrary reader.
func ParseWordlist(r io.Reader, filter Filter) ([]string, error) {
	re, err := filter.compile()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var words []string

	err = scanLines(r, func(line string) {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return
		}
		word := NormalizeWord(line)
		if word == "" {
			return
		}
		if re != nil && !re.MatchString(word) {
			return
		}
		if _, ok := seen[word]; ok {
			return
		}
		seen[word] = struct{}{}
		words = append(words, word)
	})
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, ErrNoWords
	}
	return words, nil
}

// ReadDomains collects base domains from a single value and/or a file.
// When neither yields anything, stdin is read unless it is a terminal.
func ReadDomains(domain, domainFile string, stdin io.Reader) ([]string, error) {
	var domains []string
	add := func(d string) {
		if d = NormalizeWord(d); d != "" {
			domains = append(domains, d)
		}
	}

	add(domain)

	if domainFile != "" {
		file, err := os.Open(domainFile)
		if err != nil {
			return nil, fmt.Errorf("open domain file %s: %w", domainFile, err)
		}
		err = scanLines(file, add)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("read domain file %s: %w", domainFile, err)
		}
	}

	if len(domains) == 0 && stdin != nil {
		if f, ok := stdin.(*os.File); ok && IsTerminal(f) {
			return nil, ErrStdinTerminal
		}
		if err := scanLines(stdin, add); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	domains = dedupe(domains)
	if len(domains) == 0 {
		return nil, ErrNoDomains
	}
	return domains, nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func scanLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	return scanner.Err()
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
