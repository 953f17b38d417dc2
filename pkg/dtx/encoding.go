package dtx

import (
	"bufio"
	"bytes"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText converts raw chart text to UTF-8.
// A UTF-8 or UTF-16 byte order mark wins; otherwise valid UTF-8 is kept as is
// and anything else is read as Shift_JIS.
func DecodeText(data []byte) (string, error) {
	var fallback transform.Transformer = japanese.ShiftJIS.NewDecoder()
	if utf8.Valid(data) {
		fallback = encoding.Nop.NewDecoder()
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(out), nil
}

// directive is one "#KEY value" line with the comment removed.
type directive struct {
	line  int
	key   string // upper-cased, without '#'
	value string
}

// directives yields every directive of text in file order.
// Lines not starting with '#' are skipped.
func directives(text string) iter.Seq[directive] {
	return func(yield func(directive) bool) {
		sc := bufio.NewScanner(strings.NewReader(text))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		n := 0
		for sc.Scan() {
			n++
			line := sc.Text()
			if i := strings.IndexByte(line, ';'); i >= 0 {
				line = line[:i]
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "#") {
				continue
			}
			d, ok := splitDirective(line[1:])
			if !ok {
				continue
			}
			d.line = n
			if !yield(d) {
				return
			}
		}
	}
}

func splitDirective(body string) (directive, bool) {
	i := strings.IndexAny(body, ": \t")
	if i == 0 {
		return directive{}, false
	}
	if i < 0 {
		return directive{key: strings.ToUpper(body)}, true
	}
	value := strings.TrimSpace(body[i:])
	value = strings.TrimSpace(strings.TrimPrefix(value, ":"))
	return directive{key: strings.ToUpper(body[:i]), value: value}, true
}

// cleanPattern drops whitespace and '_' separators from an object pattern.
func cleanPattern(s string) string {
	if !strings.ContainsAny(s, " \t_") {
		return s
	}
	var b bytes.Buffer
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
