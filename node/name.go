package node

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ROS graph name grammar. Names live in a slash-separated hierarchy;
// a leading "/" makes a name global, a leading "~" resolves it under
// the node's own qualified name.
const (
	sep       = "/"
	globalNS  = "/"
	privateNS = "~"
	remapSep  = ":="
)

type nameMap map[string]string

var namePattern = regexp.MustCompile(`^[~/]?([a-zA-Z]\w*/)*[a-zA-Z]\w*$`)

func isValidName(name string) bool {
	if name == "" || name == globalNS || name == privateNS {
		return true
	}
	return namePattern.MatchString(name)
}

func isGlobalName(name string) bool {
	return strings.HasPrefix(name, globalNS)
}

func isPrivateName(name string) bool {
	return strings.HasPrefix(name, privateNS)
}

// canonicalizeName collapses repeated separators and strips the
// trailing one, keeping a leading "/" or "~".
func canonicalizeName(name string) string {
	if name == "" || name == globalNS {
		return name
	}
	var components []string
	for _, word := range strings.Split(strings.TrimPrefix(name, privateNS), sep) {
		if word != "" {
			components = append(components, word)
		}
	}
	joined := strings.Join(components, sep)
	switch {
	case isGlobalName(name):
		return globalNS + joined
	case isPrivateName(name):
		return privateNS + joined
	default:
		return joined
	}
}

// namespaceOf returns the parent namespace of name, with a trailing
// separator: namespaceOf("/go/node2") == "/go/".
func namespaceOf(name string) string {
	name = strings.TrimSuffix(name, sep)
	if i := strings.LastIndex(name, sep); i >= 0 {
		return name[:i+1]
	}
	return globalNS
}

// qualifyNodeName splits a node name into its namespace and base name.
// The namespace keeps its trailing separator so the two concatenate
// back into the qualified name.
func qualifyNodeName(name string) (namespace string, base string, err error) {
	if name == "" {
		return "", "", errors.New("empty node name")
	}
	if strings.Contains(name, privateNS) {
		return "", "", errors.Errorf("node name '%s' must not contain '~'", name)
	}
	canon := canonicalizeName(name)
	if !isValidName(canon) {
		return "", "", errors.Errorf("invalid node name '%s'", name)
	}
	components := strings.Split(strings.TrimPrefix(canon, globalNS), sep)
	base = components[len(components)-1]
	if base == "" {
		return "", "", errors.Errorf("invalid node name '%s'", name)
	}
	if len(components) == 1 {
		return globalNS, base, nil
	}
	return globalNS + strings.Join(components[:len(components)-1], sep) + sep, base, nil
}

// resolveName resolves name against base, the node's qualified name.
// Global names stay as they are, private names land under base itself,
// relative names under base's namespace.
func resolveName(name string, base string) string {
	if name == "" {
		return namespaceOf(base)
	}
	canon := canonicalizeName(name)
	switch {
	case isGlobalName(canon):
		return canon
	case isPrivateName(canon):
		return canonicalizeName(base + sep + strings.TrimPrefix(canon, privateNS))
	default:
		return namespaceOf(base) + canon
	}
}

type resolver struct {
	base     string // qualified node name, e.g. /ns/node
	resolved nameMap
}

func newResolver(base string, remaps nameMap) *resolver {
	r := &resolver{
		base:     canonicalizeName(base),
		resolved: make(nameMap, len(remaps)),
	}
	for from, to := range remaps {
		r.resolved[resolveName(from, r.base)] = resolveName(to, r.base)
	}
	return r
}

func (r *resolver) resolve(name string) string {
	resolved := resolveName(name, r.base)
	if to, ok := r.resolved[resolved]; ok {
		return to
	}
	return resolved
}

// splitArgs separates command-line arguments into name remappings
// (from:=to), parameter assignments (_key:=value, key stripped of the
// underscore), special keys (__name and friends) and everything else.
func splitArgs(args []string) (remaps nameMap, params nameMap, specials nameMap, rest []string) {
	remaps = make(nameMap)
	params = make(nameMap)
	specials = make(nameMap)
	for _, arg := range args {
		components := strings.SplitN(arg, remapSep, 2)
		if len(components) != 2 {
			rest = append(rest, arg)
			continue
		}
		key, value := components[0], components[1]
		switch {
		case strings.HasPrefix(key, "__"):
			specials[key] = value
		case strings.HasPrefix(key, "_"):
			params[key[1:]] = value
		default:
			remaps[key] = value
		}
	}
	return remaps, params, specials, rest
}
