package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrSettingsNotReady is returned when command filters are built from a zero Settings.
var ErrSettingsNotReady = errors.New("filter settings not initialized")

// Settings is the process-wide command configuration: the bot username and
// the characters that may start a command. It is built once at startup and
// read-only afterwards.
type Settings struct {
	username string
	prefixes []string
	ready    bool
}

// NewSettings validates and freezes the command configuration. username may
// be empty for accounts without one.
func NewSettings(username string, prefixes []string) (Settings, error) {
	if len(prefixes) == 0 {
		return Settings{}, fmt.Errorf("new settings: at least one prefix is required")
	}
	for _, p := range prefixes {
		if p == "" {
			return Settings{}, fmt.Errorf("new settings: empty prefix")
		}
	}

	cp := make([]string, len(prefixes))
	copy(cp, prefixes)
	return Settings{
		username: strings.TrimPrefix(username, "@"),
		prefixes: cp,
		ready:    true,
	}, nil
}

// Username returns the bot username without the leading @.
func (s Settings) Username() string { return s.username }

// Prefixes returns a copy of the command prefixes.
func (s Settings) Prefixes() []string {
	cp := make([]string, len(s.prefixes))
	copy(cp, s.prefixes)
	return cp
}

// Command builds a Regex filter for a bot command. Only the first
// whitespace-delimited token of pattern is kept. The result matches any
// prefix character followed by the command and an optional @username; a
// trailing $ in pattern anchors the end.
//
// Command("ping$") with prefixes "/" and username "bot" yields ^[/]ping(?:@bot)?$.
func (s Settings) Command(pattern string) (Filter, error) {
	if !s.ready {
		return Filter{}, ErrSettingsNotReady
	}

	expr := pattern
	anchored := strings.HasSuffix(expr, "$")
	if anchored {
		expr = strings.TrimSuffix(expr, "$")
	}

	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return Filter{}, fmt.Errorf("command pattern %q is empty", pattern)
	}
	expr = fields[0]

	var b strings.Builder
	b.WriteString("^[")
	for _, p := range s.prefixes {
		b.WriteString(classEscape(p))
	}
	b.WriteString("]")
	b.WriteString(expr)
	if s.username != "" {
		b.WriteString("(?:@")
		b.WriteString(regexp.QuoteMeta(s.username))
		b.WriteString(")?")
	}
	if anchored {
		b.WriteString("$")
	}

	return Regex(b.String())
}

// MustCommand is like Command but panics on error.
func (s Settings) MustCommand(pattern string) Filter {
	f, err := s.Command(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// classEscape escapes the characters that are special inside a regexp
// character class.
func classEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', ']', '[', '^', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
