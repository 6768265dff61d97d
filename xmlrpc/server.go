package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"sync"
)

// Method is a handler function. It must return (interface{}, error) or
// any (T, error); arguments are matched positionally against the
// decoded request values.
type Method interface{}

// Handler serves XML-RPC over HTTP, dispatching by method name.
type Handler struct {
	methods  map[string]Method
	mu       sync.Mutex
	idle     *sync.Cond
	inflight int
}

func NewHandler(methods map[string]Method) *Handler {
	h := &Handler{methods: methods}
	h.idle = sync.NewCond(&h.mu)
	return h
}

// WaitForShutdown blocks until all in-flight requests have finished.
// Close the listener first so no new ones arrive.
func (h *Handler) WaitForShutdown() {
	h.mu.Lock()
	for h.inflight > 0 {
		h.idle.Wait()
	}
	h.mu.Unlock()
}

func (h *Handler) enter() {
	h.mu.Lock()
	h.inflight++
	h.mu.Unlock()
}

func (h *Handler) leave() {
	h.mu.Lock()
	h.inflight--
	if h.inflight == 0 {
		h.idle.Broadcast()
	}
	h.mu.Unlock()
}

func writeFault(w http.ResponseWriter, code int32, message string) {
	var buf bytes.Buffer
	if err := encodeFault(&buf, code, message); err != nil {
		http.Error(w, message, http.StatusInternalServerError)
		return
	}
	buf.WriteTo(w)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.enter()
	defer h.leave()

	name, args, err := decodeRequest(xml.NewDecoder(req.Body))
	if err != nil {
		writeFault(w, 1, "invalid request")
		return
	}

	method, ok := h.methods[name]
	if !ok {
		writeFault(w, 1, fmt.Sprintf("no method named '%s'", name))
		return
	}

	fn := reflect.ValueOf(method)
	if fn.Type().NumIn() != len(args) {
		writeFault(w, 1, fmt.Sprintf("method '%s' takes %d arguments, got %d", name, fn.Type().NumIn(), len(args)))
		return
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		v := reflect.ValueOf(arg)
		if !v.IsValid() || !v.Type().AssignableTo(fn.Type().In(i)) {
			writeFault(w, 1, fmt.Sprintf("method '%s': bad argument %d", name, i))
			return
		}
		in[i] = v
	}

	out := fn.Call(in)
	if len(out) != 2 {
		writeFault(w, 1, fmt.Sprintf("method '%s' returned invalid results", name))
		return
	}
	if errVal := out[1]; !errVal.IsNil() {
		writeFault(w, 1, fmt.Sprintf("method '%s' call failed", name))
		return
	}

	var buf bytes.Buffer
	if err := encodeResponse(&buf, out[0].Interface()); err != nil {
		writeFault(w, 1, fmt.Sprintf("method '%s' returned an unencodable result", name))
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}
