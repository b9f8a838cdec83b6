package rules

import (
	"strconv"
	"strings"

	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/api/interfaces"
	"github.com/sirupsen/logrus"
)

// Definition is a parsed match, ready to be installed.
type Definition struct {
	SetName string
	Dirs    []api.Direction
	Options []Option
	// Warnings lists accepted but deprecated usage, for the caller to log.
	Warnings []string
}

// Info compiles the definition without resolving its set.
func (d *Definition) Info() (*MatchInfo, error) {
	return NewMatchInfo(d.SetName, d.Dirs, d.Options...)
}

func (d *Definition) Install(engine interfaces.SetEngine, logger *logrus.Logger) (*Match, error) {
	return Install(engine, logger, d.SetName, d.Dirs, d.Options...)
}

var counterOptions = map[string]struct {
	quantity string
	op       CounterOp
}{
	"--packets-eq": {"packets", CounterEq},
	"--packets-lt": {"packets", CounterLt},
	"--packets-gt": {"packets", CounterGt},
	"--bytes-eq":   {"bytes", CounterEq},
	"--bytes-lt":   {"bytes", CounterLt},
	"--bytes-gt":   {"bytes", CounterGt},
}

// ParseLine splits line on white space and parses the result.
func ParseLine(line string) (*Definition, error) {
	return Parse(strings.Fields(line))
}

// Parse reads the match options:
//
//	[!] --match-set name flags [--return-nomatch]
//	[! --update-counters] [! --update-subcounters] [--proxy-protocol]
//	[[!] --packets-eq value | --packets-lt value | --packets-gt value]
//	[[!] --bytes-eq value | --bytes-lt value | --bytes-gt value]
//
// where flags is the comma separated list of src and dst specifications.
func Parse(args []string) (*Definition, error) {
	def := &Definition{}
	// scratch catches conflicts at the option that introduces them
	scratch := &MatchInfo{}
	add := func(opt Option) error {
		if err := opt(scratch); err != nil {
			return err
		}
		def.Options = append(def.Options, opt)
		return nil
	}

	seen := false
	invert := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "!" {
			if invert {
				return nil, configErrorf("multiple `!' flags not allowed")
			}
			invert = true
			continue
		}

		var err error
		switch arg {
		case "--proxy-protocol":
			if invert {
				return nil, configErrorf("--proxy-protocol flag cannot be inverted")
			}
			err = add(ProxyProtocol())
		case "--update-subcounters":
			if invert {
				err = add(SkipSubcounterUpdate())
			}
		case "--update-counters":
			if invert {
				err = add(SkipCounterUpdate())
			}
		case "--return-nomatch":
			if invert {
				return nil, configErrorf("--return-nomatch flag cannot be inverted")
			}
			err = add(ReturnNomatch())
		case "--packets-eq", "--packets-lt", "--packets-gt", "--bytes-eq", "--bytes-lt", "--bytes-gt":
			if i+1 >= len(args) {
				return nil, configErrorf("%s requires an argument", arg)
			}
			i++
			var value uint64
			value, err = parseCounter(args[i])
			if err != nil {
				return nil, err
			}
			c := counterOptions[arg]
			if c.quantity == "packets" {
				err = add(Packets(c.op, value, invert))
			} else {
				err = add(Bytes(c.op, value, invert))
			}
		case "--set", "--match-set":
			if arg == "--set" {
				def.Warnings = append(def.Warnings, "--set option deprecated, please use --match-set")
			}
			if seen {
				return nil, configErrorf("--match-set can be specified only once")
			}
			if i+2 >= len(args) || strings.HasPrefix(args[i+2], "-") || strings.HasPrefix(args[i+2], "!") {
				return nil, configErrorf("--match-set requires two args.")
			}
			name := args[i+1]
			if len(name) > api.MaxNameLen-1 {
				return nil, configErrorf("setname `%s' too long, max %d characters.", name, api.MaxNameLen-1)
			}
			dirs, err := ParseDirs(args[i+2])
			if err != nil {
				return nil, err
			}
			if invert {
				if err := add(Invert()); err != nil {
					return nil, err
				}
			}
			def.SetName = name
			def.Dirs = dirs
			seen = true
			i += 2
		default:
			return nil, configErrorf("unknown option %q", arg)
		}
		if err != nil {
			return nil, err
		}
		invert = false
	}

	if invert {
		return nil, configErrorf("`!' must precede an option")
	}
	if !seen {
		return nil, configErrorf("You must specify `--match-set' with proper arguments")
	}
	return def, nil
}

// ParseDirs parses the comma separated src/dst list of --match-set.
func ParseDirs(s string) ([]api.Direction, error) {
	var dirs []api.Direction
	for _, tok := range strings.Split(s, ",") {
		if len(dirs) == api.DimMax {
			return nil, configErrorf("Can't be more src/dst options than %d.", api.DimMax)
		}
		switch tok {
		case "src":
			dirs = append(dirs, api.Src)
		case "dst":
			dirs = append(dirs, api.Dst)
		default:
			return nil, configErrorf("You must specify (the comma separated list of) 'src' or 'dst'.")
		}
	}
	return dirs, nil
}

// parseCounter accepts decimal, 0x hexadecimal and 0 prefixed octal values.
func parseCounter(s string) (uint64, error) {
	lower := strings.ToLower(s)
	if strings.ContainsRune(s, '_') || strings.HasPrefix(lower, "0b") || strings.HasPrefix(lower, "0o") {
		return 0, configErrorf("Cannot parse %s as a counter value", s)
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, configErrorf("Cannot parse %s as a counter value", s)
	}
	return v, nil
}
