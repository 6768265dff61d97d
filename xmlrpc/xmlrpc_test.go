package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"net"
	"net/http"
	"reflect"
	"testing"
	"time"
)

func encodeToString(t *testing.T, v interface{}) string {
	t.Helper()
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestEncodeNil(t *testing.T) {
	if s := encodeToString(t, nil); s != "" {
		t.Error(s)
	}
}

func TestEncodeBoolean(t *testing.T) {
	if s := encodeToString(t, true); s != "<boolean>1</boolean>" {
		t.Error(s)
	}
	if s := encodeToString(t, false); s != "<boolean>0</boolean>" {
		t.Error(s)
	}
}

func TestEncodeInt(t *testing.T) {
	if s := encodeToString(t, 42); s != "<int>42</int>" {
		t.Error(s)
	}
	if s := encodeToString(t, int32(-7)); s != "<int>-7</int>" {
		t.Error(s)
	}
}

func TestEncodeDouble(t *testing.T) {
	if s := encodeToString(t, 3.14); s != "<double>3.14</double>" {
		t.Error(s)
	}
}

func TestEncodeString(t *testing.T) {
	if s := encodeToString(t, "Hello, world!"); s != "<string>Hello, world!</string>" {
		t.Error(s)
	}
	if s := encodeToString(t, "a < b & c"); s != "<string>a &lt; b &amp; c</string>" {
		t.Error(s)
	}
}

func TestEncodeBase64(t *testing.T) {
	if s := encodeToString(t, []byte("ABCDEFG")); s != "<base64>QUJDREVGRw==</base64>" {
		t.Error(s)
	}
}

func TestEncodeArray(t *testing.T) {
	xs := []interface{}{int32(12), "Egypt", false, int32(-31)}
	expected := "<array><data>" +
		"<value><int>12</int></value>" +
		"<value><string>Egypt</string></value>" +
		"<value><boolean>0</boolean></value>" +
		"<value><int>-31</int></value>" +
		"</data></array>"
	if s := encodeToString(t, xs); s != expected {
		t.Error(s)
	}
}

func TestEncodeStruct(t *testing.T) {
	m := map[string]interface{}{"x": int32(1)}
	expected := "<struct><member><name>x</name><value><int>1</int></value></member></struct>"
	if s := encodeToString(t, m); s != expected {
		t.Error(s)
	}
}

func TestEncodeStructRejectsNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, map[int]string{1: "x"}); err == nil {
		t.Error("expected an error")
	}
}

func decodeValueString(t *testing.T, source string) interface{} {
	t.Helper()
	d := xml.NewDecoder(bytes.NewBufferString(source))
	if _, err := expectStart(d, "value"); err != nil {
		t.Fatal(err)
	}
	v, err := decodeValue(d)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDecodeScalars(t *testing.T) {
	cases := []struct {
		source string
		want   interface{}
	}{
		{"<value><boolean>1</boolean></value>", true},
		{"<value><boolean>0</boolean></value>", false},
		{"<value><int>42</int></value>", int32(42)},
		{"<value><i4>-9</i4></value>", int32(-9)},
		{"<value><double>0.5</double></value>", 0.5},
		{"<value><string>hi</string></value>", "hi"},
		{"<value><string></string></value>", ""},
		{"<value>untyped</value>", "untyped"},
	}
	for _, c := range cases {
		if got := decodeValueString(t, c.source); got != c.want {
			t.Errorf("%s: got %#v, want %#v", c.source, got, c.want)
		}
	}
}

func TestDecodeArray(t *testing.T) {
	source := `<value><array><data>
		<value><int>1</int></value>
		<value><string>two</string></value>
	</data></array></value>`
	got := decodeValueString(t, source)
	want := []interface{}{int32(1), "two"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestDecodeStruct(t *testing.T) {
	source := `<value><struct>
		<member><name>code</name><value><int>1</int></value></member>
		<member><name>msg</name><value><string>ok</string></value></member>
	</struct></value>`
	got := decodeValueString(t, source)
	want := map[string]interface{}{"code": int32(1), "msg": "ok"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestDecodeResponse(t *testing.T) {
	source := xml.Header + `<methodResponse><params><param>
		<value><string>rosout ready</string></value>
	</param></params></methodResponse>`
	result, ok, err := decodeResponse(xml.NewDecoder(bytes.NewBufferString(source)))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected a regular response")
	}
	if result != "rosout ready" {
		t.Error(result)
	}
}

func TestDecodeFaultResponse(t *testing.T) {
	source := xml.Header + `<methodResponse><fault><value><struct>
		<member><name>faultCode</name><value><int>42</int></value></member>
		<member><name>faultString</name><value><string>failed</string></value></member>
	</struct></value></fault></methodResponse>`
	result, ok, err := decodeResponse(xml.NewDecoder(bytes.NewBufferString(source)))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected a fault")
	}
	m, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a map, got %T", result)
	}
	if m["faultCode"] != int32(42) || m["faultString"] != "failed" {
		t.Error(m)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := encodeRequest(&buf, "setParam", "/caller", "/key", int32(7)); err != nil {
		t.Fatal(err)
	}
	method, args, err := decodeRequest(xml.NewDecoder(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if method != "setParam" {
		t.Error(method)
	}
	want := []interface{}{"/caller", "/key", int32(7)}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("got %#v, want %#v", args, want)
	}
}

type adder struct {
	factor int32
}

func (a *adder) addTwoInts(x int32, y int32) (interface{}, error) {
	return a.factor * (x + y), nil
}

func TestServerRoundTrip(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	a := adder{factor: 2}
	handler := NewHandler(map[string]Method{"addTwoInts": a.addTwoInts})
	go http.Serve(listener, handler)
	url := "http://" + listener.Addr().String()

	result, err := Call(url, "addTwoInts", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if i, ok := result.(int32); !ok || i != 6 {
		t.Error(result)
	}

	// Unknown methods and wrong arity come back as faults.
	if _, err := Call(url, "noSuchMethod"); err == nil {
		t.Error("expected a fault")
	} else if _, ok := err.(*Fault); !ok {
		t.Errorf("expected *Fault, got %T: %v", err, err)
	}

	if _, err := Call(url, "addTwoInts", 1); err == nil {
		t.Error("expected a fault for wrong arity")
	}
}

func TestWaitForShutdownBlocksOnInflight(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	handler := NewHandler(map[string]Method{
		"block": func(callerID string) (interface{}, error) {
			close(started)
			<-release
			return "done", nil
		},
	})
	go http.Serve(listener, handler)
	url := "http://" + listener.Addr().String()

	callDone := make(chan struct{})
	go func() {
		Call(url, "block", "/caller")
		close(callDone)
	}()
	<-started

	waited := make(chan struct{})
	go func() {
		handler.WaitForShutdown()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("WaitForShutdown returned with a request in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
	<-callDone

	// With the endpoint idle again, a second wait must not hang.
	handler.WaitForShutdown()
}
