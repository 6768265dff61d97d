package node

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/hydronav/rosnode/xmlrpc"
)

// fakeMaster serves the parameter part of the ROS master API over this
// repo's own xmlrpc.Handler, backed by a plain map.
type fakeMaster struct {
	mu       sync.Mutex
	params   map[string]interface{}
	listener net.Listener
}

func newFakeMaster(t *testing.T) *fakeMaster {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	m := &fakeMaster{
		params:   make(map[string]interface{}),
		listener: listener,
	}
	handler := xmlrpc.NewHandler(map[string]xmlrpc.Method{
		"getParam":    m.getParam,
		"setParam":    m.setParam,
		"hasParam":    m.hasParam,
		"deleteParam": m.deleteParam,
		"searchParam": m.searchParam,
	})
	go http.Serve(listener, handler)
	t.Cleanup(func() { listener.Close() })
	return m
}

func (m *fakeMaster) uri() string {
	return "http://" + m.listener.Addr().String()
}

func (m *fakeMaster) set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[key] = value
}

func (m *fakeMaster) get(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.params[key]
	return value, ok
}

func (m *fakeMaster) getParam(callerID string, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.params[key]
	if !ok {
		return apiResult(statusError, "Parameter ["+key+"] is not set", 0), nil
	}
	return apiResult(statusSuccess, "Parameter ["+key+"]", value), nil
}

func (m *fakeMaster) setParam(callerID string, key string, value interface{}) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[key] = value
	return apiResult(statusSuccess, "parameter "+key+" set", 0), nil
}

func (m *fakeMaster) hasParam(callerID string, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.params[key]
	return apiResult(statusSuccess, key, ok), nil
}

func (m *fakeMaster) deleteParam(callerID string, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.params[key]; !ok {
		return apiResult(statusError, "Parameter ["+key+"] is not set", 0), nil
	}
	delete(m.params, key)
	return apiResult(statusSuccess, "parameter "+key+" deleted", 0), nil
}

// searchParam walks from the caller's namespace towards the root, the
// way the real master resolves relative keys.
func (m *fakeMaster) searchParam(callerID string, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := callerID
	for {
		ns = ns[:strings.LastIndex(ns, "/")+1]
		candidate := ns + key
		if _, ok := m.params[candidate]; ok {
			return apiResult(statusSuccess, "found", candidate), nil
		}
		if ns == "/" {
			break
		}
		ns = strings.TrimSuffix(ns, "/")
	}
	return apiResult(statusError, "no parameter matching "+key, 0), nil
}
