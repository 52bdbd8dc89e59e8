package option

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/wippyai/databroker/errors"
)

// Parse converts an argument vector into an option list.
//
//	-Xvalue     flag X with argument "value"
//	-           synopsis request
//	< file      explicit input
//	> file      output destination
//	-3.5        bare argument (negative number)
//	word        bare argument, treated as input
func Parse(argv []string) (List, error) {
	l := make(List, 0, len(argv))
	var err error
	for i := 0; i < len(argv); i++ {
		a := argv[i]
		var o Option
		switch {
		case a == "<" && i+1 < len(argv) && !isFlag(argv[i+1]):
			i++
			o = Make(FlagInput, argv[i])
		case a == ">" && i+1 < len(argv) && !isFlag(argv[i+1]):
			i++
			o = Make(FlagOutput, argv[i])
		case a == "-":
			o = Option{Flag: FlagSynopsis}
		case !isFlag(a):
			o = Make(FlagInput, a)
		default:
			o = Make(a[1], a[2:])
		}
		if l, err = l.Append(o); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// ParseCommand tokenizes a single command string and parses it.
// Single and double quotes group words containing blanks.
func ParseCommand(cmd string) (List, error) {
	words, err := Split(cmd)
	if err != nil {
		return nil, err
	}
	return Parse(words)
}

// Split breaks cmd into words on unquoted blanks.
func Split(cmd string) ([]string, error) {
	var (
		words  []string
		cur    strings.Builder
		quote  rune
		inWord bool
	)
	for _, r := range cmd {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, errors.InvalidInput(errors.PhaseOption, "unterminated quote in command")
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words, nil
}

// isFlag reports whether a starts a flag option: a leading '-' followed by
// something that is not a number.
func isFlag(a string) bool {
	if len(a) < 2 || a[0] != '-' {
		return false
	}
	if _, err := strconv.ParseFloat(a, 64); err == nil {
		return false
	}
	return true
}
