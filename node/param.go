package node

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ErrParamNotSet reports a parameter-server lookup for a key that has
// no value. Transport failures and malformed replies keep their own
// error types and are never folded into this one.
var ErrParamNotSet = errors.New("parameter is not set")

// paramValue reads a parameter without any default handling. A
// non-success status from the master means the key has no value and
// comes back as ErrParamNotSet.
func (n *Node) paramValue(key string) (interface{}, error) {
	value, err := callMaster(n.masterURI, "getParam", n.qualifiedName, n.resolver.resolve(key))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, ErrParamNotSet
		}
		return nil, err
	}
	return value, nil
}

func (n *Node) setParam(key string, value interface{}) error {
	_, err := callMaster(n.masterURI, "setParam", n.qualifiedName, n.resolver.resolve(key), value)
	return err
}

// GetParam reads a parameter, logging the value when Verbose is set.
// When the key has no value and def is non-nil, def is written back to
// the server and returned; with a nil def a warning is logged and
// (nil, nil) returned. Any other failure propagates to the caller.
func (n *Node) GetParam(key string, def interface{}) (interface{}, error) {
	value, err := n.paramValue(key)
	if err == nil {
		if n.Verbose {
			n.logger.Infof("%s=%s", key, n.formatValue(value))
		}
		return value, nil
	}
	if !errors.Is(err, ErrParamNotSet) {
		return nil, err
	}
	if def == nil {
		n.logger.Warnf("no default value given for parameter '%s', unexpected behaviour possible", key)
		return nil, nil
	}
	if err := n.setParam(key, def); err != nil {
		return nil, err
	}
	n.logger.Warnf("parameter '%s' is not set, using default '%s'", key, n.formatValue(def))
	return def, nil
}

// SetParam writes value to the parameter server verbatim, then logs it
// when Verbose is set. Logging operates on a formatted copy; the value
// itself is never touched.
func (n *Node) SetParam(key string, value interface{}) error {
	if err := n.setParam(key, value); err != nil {
		return err
	}
	if n.Verbose {
		n.logger.Infof("%s=%s", key, n.formatValue(value))
	}
	return nil
}

// HasParam reports whether key has a value on the parameter server.
func (n *Node) HasParam(key string) (bool, error) {
	result, err := callMaster(n.masterURI, "hasParam", n.qualifiedName, n.resolver.resolve(key))
	if err != nil {
		return false, err
	}
	has, ok := result.(bool)
	if !ok {
		return false, errors.Errorf("malformed hasParam reply: %v", result)
	}
	return has, nil
}

// SearchParam looks key up in the node's namespace and upwards,
// returning the closest key that exists.
func (n *Node) SearchParam(key string) (string, error) {
	result, err := callMaster(n.masterURI, "searchParam", n.qualifiedName, key)
	if err != nil {
		return "", err
	}
	found, ok := result.(string)
	if !ok {
		return "", errors.Errorf("malformed searchParam reply: %v", result)
	}
	return found, nil
}

// DeleteParam removes key from the parameter server.
func (n *Node) DeleteParam(key string) error {
	_, err := callMaster(n.masterURI, "deleteParam", n.qualifiedName, n.resolver.resolve(key))
	return err
}

// StringParam is GetParam for string values.
func (n *Node) StringParam(key string, def string) (string, error) {
	value, err := n.GetParam(key, def)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", errors.Errorf("parameter %s: expected string, got %T", key, value)
	}
	return s, nil
}

// IntParam is GetParam for integer values.
func (n *Node) IntParam(key string, def int) (int, error) {
	value, err := n.GetParam(key, def)
	if err != nil {
		return 0, err
	}
	switch v := value.(type) {
	case int32:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, errors.Errorf("parameter %s: expected int, got %T", key, value)
	}
}

// Float64Param is GetParam for floating-point values. Integer values
// on the server convert losslessly.
func (n *Node) Float64Param(key string, def float64) (float64, error) {
	value, err := n.GetParam(key, def)
	if err != nil {
		return 0, err
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, errors.Errorf("parameter %s: expected float, got %T", key, value)
	}
}

// BoolParam is GetParam for boolean values.
func (n *Node) BoolParam(key string, def bool) (bool, error) {
	value, err := n.GetParam(key, def)
	if err != nil {
		return false, err
	}
	b, ok := value.(bool)
	if !ok {
		return false, errors.Errorf("parameter %s: expected bool, got %T", key, value)
	}
	return b, nil
}

// formatValue renders a parameter value for logging, truncated to
// LogLimit characters.
func (n *Node) formatValue(value interface{}) string {
	return truncate(fmt.Sprint(value), n.LogLimit)
}

// truncate cuts s to limit characters plus an ellipsis marker. A limit
// of zero or less disables truncation.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// parseParamLiteral decodes a command-line parameter value the way
// rosparam does: as a YAML literal, so _rate:=20 is an int and
// _frame:=base_link a string.
func parseParamLiteral(literal string) (interface{}, error) {
	var value interface{}
	if err := yaml.Unmarshal([]byte(literal), &value); err != nil {
		return nil, errors.Wrap(err, "invalid parameter literal")
	}
	return normalizeYAML(value), nil
}
