package descriptor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Host is one endpoint entry of a descriptor clause, e.g.
// {{10,0,0,2}, 14195, service_per_vm}.
type Host struct {
	Address string `json:"address" yaml:"address"`
	Port    int    `json:"port" yaml:"port"`
	Name    string `json:"name" yaml:"name"`
}

func (h Host) String() string {
	tuple, err := EncodeAddress(h.Address)
	if err != nil {
		tuple = "{" + h.Address + "}"
	}
	return fmt.Sprintf("{%s, %d, %s}", tuple, h.Port, h.Name)
}

var (
	hostPattern       = regexp.MustCompile(`^\{\s*(\{[^{}]*\})\s*,\s*(\d+)\s*,\s*([a-z][a-zA-Z0-9_]*)\s*\}$`)
	knownHostsPattern = regexp.MustCompile(`^\{\s*known_hosts\s*,\s*\[(.*)\]\s*\}\.?$`)
	namedHostPattern  = regexp.MustCompile(`^\{\s*([a-z][a-zA-Z0-9_]*)\s*,\s*(\{.*\})\s*\}\.?$`)
)

// ParseKnownHosts decodes a {known_hosts, [...]}. clause. Every list
// element must be a host entry.
func ParseKnownHosts(clause string) ([]Host, error) {
	m := knownHostsPattern.FindStringSubmatch(strings.TrimSpace(clause))
	if m == nil {
		return nil, fmt.Errorf("malformed known_hosts clause %q", clause)
	}

	hosts := []Host{}
	body := strings.TrimSpace(m[1])
	if body == "" {
		return hosts, nil
	}
	elems, err := splitTopLevel(body)
	if err != nil {
		return nil, fmt.Errorf("malformed known_hosts clause %q: %w", clause, err)
	}
	for _, elem := range elems {
		e := hostPattern.FindStringSubmatch(elem)
		if e == nil {
			return nil, fmt.Errorf("malformed known_hosts entry %q", elem)
		}
		h, err := parseHost(e)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// ParseMgmtServer decodes a {mgmt_server, {...}}. clause.
func ParseMgmtServer(clause string) (Host, error) {
	return ParseMgmtServerNamed(clause, DefaultMgmtName)
}

// ParseMgmtServerNamed is ParseMgmtServer for rings whose management
// server key is not mgmt_server.
func ParseMgmtServerNamed(clause, name string) (Host, error) {
	m := namedHostPattern.FindStringSubmatch(strings.TrimSpace(clause))
	if m == nil {
		return Host{}, fmt.Errorf("malformed management server clause %q", clause)
	}
	if m[1] != name {
		return Host{}, fmt.Errorf("clause key %q, want %q", m[1], name)
	}
	e := hostPattern.FindStringSubmatch(strings.TrimSpace(m[2]))
	if e == nil {
		return Host{}, fmt.Errorf("malformed management server clause %q", clause)
	}
	return parseHost(e)
}

// splitTopLevel splits a list body on the commas that are not nested in a
// tuple or list.
func splitTopLevel(body string) ([]string, error) {
	var (
		elems []string
		depth int
		start int
	)
	for i, r := range body {
		switch r {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q at %d", r, i)
			}
		case ',':
			if depth == 0 {
				elems = append(elems, strings.TrimSpace(body[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced list body")
	}
	elems = append(elems, strings.TrimSpace(body[start:]))
	for _, e := range elems {
		if e == "" {
			return nil, fmt.Errorf("empty list element")
		}
	}
	return elems, nil
}

func parseHost(m []string) (Host, error) {
	addr, err := DecodeTuple(m[1])
	if err != nil {
		return Host{}, err
	}
	port, err := strconv.Atoi(m[2])
	if err != nil || port <= 0 || port > 65535 {
		return Host{}, fmt.Errorf("invalid port %q", m[2])
	}
	return Host{Address: addr, Port: port, Name: m[3]}, nil
}
