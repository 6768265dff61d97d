package node

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/hydronav/rosnode/xmlrpc"
)

// ROS API status codes, the first element of every result triplet.
const (
	statusError   int32 = -1
	statusFailure int32 = 0
	statusSuccess int32 = 1
)

// APIError is a ROS API reply whose status code was not success.
type APIError struct {
	Code    int32
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ros api status %d: %s", e.Code, e.Message)
}

// callMaster performs a ROS master API call and unpacks the
// (code, statusMessage, value) triplet, returning the value on
// success and *APIError on a non-success status.
func callMaster(masterURI string, method string, args ...interface{}) (interface{}, error) {
	result, err := xmlrpc.Call(masterURI, method, args...)
	if err != nil {
		return nil, err
	}
	triplet, ok := result.([]interface{})
	if !ok || len(triplet) != 3 {
		return nil, errors.Errorf("malformed %s reply: %v", method, result)
	}
	code, ok := triplet[0].(int32)
	if !ok {
		return nil, errors.Errorf("malformed %s reply: status code is not an int", method)
	}
	message, ok := triplet[1].(string)
	if !ok {
		return nil, errors.Errorf("malformed %s reply: status message is not a string", method)
	}
	if code != statusSuccess {
		return nil, &APIError{Code: code, Message: message}
	}
	return triplet[2], nil
}

// apiResult builds the triplet the slave API hands back to callers.
func apiResult(code int32, message string, value interface{}) interface{} {
	return []interface{}{code, message, value}
}
