// Package node wraps the ROS1 node lifecycle and parameter server
// behind a small base type: initialize once, block in Run until
// shutdown, and read or write parameters with logged, truncated
// values and default write-back.
package node

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hydronav/rosnode/xmlrpc"
)

const (
	// DefaultLogLimit is how many characters of a parameter value make
	// it into a log line before truncation.
	DefaultLogLimit = 400

	spinPollInterval = 10 * time.Millisecond
)

type config struct {
	anonymous      bool
	disableSignals bool
	masterURI      string
	logger         *logrus.Logger
}

// Option configures New.
type Option func(*config)

// Anonymous appends a random suffix to the node name so several copies
// of the same program can register at once.
func Anonymous() Option {
	return func(c *config) { c.anonymous = true }
}

// DisableSignals leaves SIGINT untouched; the caller drives shutdown.
func DisableSignals() Option {
	return func(c *config) { c.disableSignals = true }
}

// WithMasterURI overrides ROS_MASTER_URI and the __master argument.
func WithMasterURI(uri string) Option {
	return func(c *config) { c.masterURI = uri }
}

// WithLogger routes the node's log output through logger instead of
// the process-wide default.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Node is a registered participant in a ROS graph. Its zero value is
// not usable; construct one with New. Verbose and LogLimit control the
// parameter helpers' logging and may be adjusted before use.
type Node struct {
	name          string
	namespace     string
	qualifiedName string
	masterURI     string
	slaveURI      string

	listener net.Listener
	handler  *xmlrpc.Handler
	resolver *resolver
	logger   *logrus.Entry

	Verbose  bool
	LogLimit int

	ok           bool
	okMu         sync.RWMutex
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	interrupt    chan os.Signal
	restArgs     []string
}

// New registers a node named name with the ROS graph. args are the
// command-line arguments after the program name; remappings
// (from:=to), parameter assignments (_key:=value) and special keys
// (__name, __ns, __master, __ip, __hostname) are peeled off, the rest
// is available through Args. Any failure from the underlying calls is
// returned as-is; nothing is retried.
func New(name string, args []string, opts ...Option) (*Node, error) {
	cfg := config{logger: DefaultLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	remaps, params, specials, rest := splitArgs(args)

	namespace, base, err := qualifyNodeName(name)
	if err != nil {
		return nil, err
	}
	if value, ok := specials["__name"]; ok {
		base = value
	}
	if cfg.anonymous {
		base = fmt.Sprintf("%s_%s", base, anonymousSuffix())
	}
	if ns := os.Getenv("ROS_NAMESPACE"); ns != "" {
		namespace = canonicalizeName(ns) + sep
	}
	if value, ok := specials["__ns"]; ok {
		namespace = canonicalizeName(value) + sep
	}
	if namespace == sep+sep {
		namespace = globalNS
	}

	masterURI := os.Getenv("ROS_MASTER_URI")
	if value, ok := specials["__master"]; ok {
		masterURI = value
	}
	if cfg.masterURI != "" {
		masterURI = cfg.masterURI
	}
	if masterURI == "" {
		return nil, errors.New("master URI is not set (export ROS_MASTER_URI or pass __master:=)")
	}

	hostname, onlyLocalhost := determineHost()
	if value, ok := specials["__hostname"]; ok {
		hostname = value
		onlyLocalhost = value == "localhost"
	} else if value, ok := specials["__ip"]; ok {
		hostname = value
		onlyLocalhost = isLoopbackAddress(value)
	}
	listenIP := "0.0.0.0"
	if onlyLocalhost {
		listenIP = "127.0.0.1"
	}

	n := &Node{
		name:          base,
		namespace:     namespace,
		qualifiedName: namespace + base,
		masterURI:     masterURI,
		Verbose:       true,
		LogLimit:      DefaultLogLimit,
		ok:            true,
		shutdownChan:  make(chan struct{}),
		restArgs:      rest,
	}
	n.resolver = newResolver(n.qualifiedName, remaps)
	n.logger = nodeEntry(cfg.logger, n.qualifiedName)

	if !cfg.disableSignals {
		interrupt := make(chan os.Signal, 1)
		n.interrupt = interrupt
		signal.Notify(interrupt, os.Interrupt)
		go func() {
			if _, ok := <-interrupt; ok {
				n.logger.Info("interrupted")
				n.stop()
			}
		}()
	}

	listener, err := listenRandomPort(listenIP, 10)
	if err != nil {
		return nil, err
	}
	_, port, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		listener.Close()
		return nil, err
	}
	n.listener = listener
	n.slaveURI = fmt.Sprintf("http://%s:%s", hostname, port)
	n.handler = xmlrpc.NewHandler(n.slaveMethods())
	go http.Serve(n.listener, n.handler)
	n.logger.Debugf("slave API listening on %s", n.slaveURI)

	// Parameter assignments from the command line are private names.
	for key, literal := range params {
		value, err := parseParamLiteral(literal)
		if err != nil {
			n.Shutdown()
			return nil, errors.Wrapf(err, "argument parameter '%s'", key)
		}
		if err := n.setParam(privateNS+key, value); err != nil {
			n.Shutdown()
			return nil, err
		}
	}

	n.logger.Info("initialized")
	return n, nil
}

func anonymousSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func listenRandomPort(address string, trialLimit int) (net.Listener, error) {
	for trial := 0; trial < trialLimit; trial++ {
		port := 1024 + rand.Intn(65535-1024)
		listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", address, port))
		if err == nil {
			return listener, nil
		}
	}
	return nil, errors.Errorf("no free port on %s after %d trials", address, trialLimit)
}

// Name returns the node's base name, Namespace its namespace and
// QualifiedName the two joined.
func (n *Node) Name() string          { return n.name }
func (n *Node) Namespace() string     { return n.namespace }
func (n *Node) QualifiedName() string { return n.qualifiedName }

// MasterURI returns the address of the ROS master this node talks to.
func (n *Node) MasterURI() string { return n.masterURI }

// SlaveURI returns the address of the node's own XML-RPC endpoint.
func (n *Node) SlaveURI() string { return n.slaveURI }

// Args returns the command-line arguments left over after remappings,
// parameter assignments and special keys were taken out.
func (n *Node) Args() []string { return n.restArgs }

// Logger returns the entry all of the node's output goes through.
func (n *Node) Logger() *logrus.Entry { return n.logger }

// OK reports whether the node is still running. It flips to false on
// SIGINT, on a remote shutdown call or when Shutdown is called.
func (n *Node) OK() bool {
	n.okMu.RLock()
	defer n.okMu.RUnlock()
	return n.ok
}

func (n *Node) stop() {
	n.okMu.Lock()
	n.ok = false
	n.okMu.Unlock()
	n.shutdownOnce.Do(func() { close(n.shutdownChan) })
}

// SpinOnce blocks briefly, waking early if the node is shutting down.
func (n *Node) SpinOnce() {
	select {
	case <-n.shutdownChan:
	case <-time.After(spinPollInterval):
	}
}

// Spin blocks until the node is no longer OK.
func (n *Node) Spin() {
	for n.OK() {
		n.SpinOnce()
	}
}

// Run blocks until shutdown is requested, then logs that it is going
// down. Programs that only react to parameter traffic call this from
// main; anything else overrides the loop with its own.
func (n *Node) Run() {
	n.Spin()
	n.logger.Info("shutting down")
}

// Shutdown stops the run loop and tears down the slave endpoint. It is
// safe to call more than once.
func (n *Node) Shutdown() {
	n.stop()
	n.okMu.Lock()
	interrupt := n.interrupt
	listener := n.listener
	handler := n.handler
	n.interrupt = nil
	n.listener = nil
	n.handler = nil
	n.okMu.Unlock()
	if interrupt != nil {
		signal.Stop(interrupt)
		close(interrupt)
	}
	if listener != nil {
		listener.Close()
	}
	if handler != nil {
		handler.WaitForShutdown()
	}
}

// slaveMethods is the subset of the ROS slave API a topic-less node
// answers. Topic bookkeeping calls report empty or not-implemented
// results; shutdown flips the ok flag.
func (n *Node) slaveMethods() map[string]xmlrpc.Method {
	return map[string]xmlrpc.Method{
		"getPid": func(callerID string) (interface{}, error) {
			return apiResult(statusSuccess, "pid", os.Getpid()), nil
		},
		"getMasterUri": func(callerID string) (interface{}, error) {
			return apiResult(statusSuccess, "master URI", n.masterURI), nil
		},
		"shutdown": func(callerID string, msg string) (interface{}, error) {
			n.logger.Infof("shutdown requested by %s: %s", callerID, msg)
			n.stop()
			return apiResult(statusSuccess, "shutting down", 0), nil
		},
		"paramUpdate": func(callerID string, key string, value interface{}) (interface{}, error) {
			return apiResult(statusError, "not subscribed to any parameter", 0), nil
		},
		"getSubscriptions": func(callerID string) (interface{}, error) {
			return apiResult(statusSuccess, "subscriptions", []interface{}{}), nil
		},
		"getPublications": func(callerID string) (interface{}, error) {
			return apiResult(statusSuccess, "publications", []interface{}{}), nil
		},
		"getBusStats": func(callerID string) (interface{}, error) {
			return apiResult(statusError, "not implemented", 0), nil
		},
		"getBusInfo": func(callerID string) (interface{}, error) {
			return apiResult(statusError, "not implemented", 0), nil
		},
	}
}
