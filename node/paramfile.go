package node

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// LoadParamFile reads a rosparam-style YAML file and stores its
// content on the parameter server under ns ("/" for the root).
func (n *Node) LoadParamFile(path string, ns string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading param file")
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(err, "parsing param file %s", path)
	}
	if err := n.setParam(ns, normalizeYAML(doc)); err != nil {
		return err
	}
	if n.Verbose {
		n.logger.Infof("loaded parameters from %s into %s", path, ns)
	}
	return nil
}

// DumpParamFile writes the parameter subtree under ns to path as YAML.
func (n *Node) DumpParamFile(path string, ns string) error {
	value, err := n.paramValue(ns)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding parameters under %s", ns)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing param file")
	}
	if n.Verbose {
		n.logger.Infof("dumped parameters under %s to %s", ns, path)
	}
	return nil
}

// normalizeYAML rewrites the map[interface{}]interface{} trees yaml.v2
// produces into string-keyed maps, the only map shape the XML-RPC
// encoder accepts. Non-string keys (YAML allows integers and more) are
// rendered as strings, matching how rosparam names them.
func normalizeYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for key, item := range v {
			s, ok := key.(string)
			if !ok {
				s = fmt.Sprint(key)
			}
			m[s] = normalizeYAML(item)
		}
		return m
	case []interface{}:
		for i, item := range v {
			v[i] = normalizeYAML(item)
		}
		return v
	default:
		return v
	}
}
