package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Fault is a remote <fault> response turned into an error.
type Fault struct {
	Code    int32
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.Message)
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Call invokes method on the XML-RPC endpoint at url and returns the
// decoded result value. Remote faults come back as *Fault.
func Call(url string, method string, args ...interface{}) (interface{}, error) {
	var buf bytes.Buffer
	if err := encodeRequest(&buf, method, args...); err != nil {
		return nil, errors.Wrapf(err, "encoding %s request", method)
	}
	resp, err := httpClient.Post(url, "text/xml", &buf)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s on %s", method, url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("calling %s on %s: HTTP %s", method, url, resp.Status)
	}

	result, ok, err := decodeResponse(xml.NewDecoder(resp.Body))
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s response", method)
	}
	if ok {
		return result, nil
	}
	if m, ok := result.(map[string]interface{}); ok {
		code, codeOK := m["faultCode"].(int32)
		message, msgOK := m["faultString"].(string)
		if codeOK && msgOK {
			return nil, &Fault{Code: code, Message: message}
		}
	}
	return nil, errors.Errorf("malformed fault response from %s", url)
}
