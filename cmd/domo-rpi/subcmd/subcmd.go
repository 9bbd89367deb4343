// Support sub-commands in domo-rpi application.
// It's simple but fine so far.
package subcmd

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
)

type Mod struct {
	Name    string
	Aliases []string
	Usage   string
	Main    func(ctx context.Context, args []string) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name || contains(m.Aliases, command) {
			found = m
			break
		}
	}
	if found == nil {
		return nil, errors.NotFoundf("command='%s'", command)
	}
	return found, nil
}

// Help returns usage lines sorted by command name.
func Help(modules []Mod) string {
	lines := make([]string, 0, len(modules))
	for _, m := range modules {
		name := m.Name
		if len(m.Aliases) != 0 {
			name += "|" + strings.Join(m.Aliases, "|")
		}
		lines = append(lines, fmt.Sprintf("- %-22s %s", name, m.Usage))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
