// Package xmlrpc implements the subset of XML-RPC the ROS master and
// slave APIs speak: scalar, array and struct values, method calls,
// responses and faults.
package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

func escape(s string) string {
	var buf bytes.Buffer
	xml.Escape(&buf, []byte(s))
	return buf.String()
}

// encodeValue writes the <value> payload for v. Integers of any width
// become <int> (the wire format has no 64-bit integer), []byte becomes
// <base64>, string-keyed maps become <struct>.
func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		buf.WriteString("<base64>")
		buf.WriteString(base64.StdEncoding.EncodeToString(t))
		buf.WriteString("</base64>")
		return nil
	case bool:
		if t {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
		return nil
	case string:
		buf.WriteString("<string>")
		buf.WriteString(escape(t))
		buf.WriteString("</string>")
		return nil
	}

	val := reflect.ValueOf(v)
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString("<int>")
		buf.WriteString(strconv.FormatInt(val.Int(), 10))
		buf.WriteString("</int>")
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf.WriteString("<int>")
		buf.WriteString(strconv.FormatInt(int64(val.Uint()), 10))
		buf.WriteString("</int>")
	case reflect.Float32, reflect.Float64:
		buf.WriteString("<double>")
		buf.WriteString(strconv.FormatFloat(val.Float(), 'g', -1, 64))
		buf.WriteString("</double>")
	case reflect.Array, reflect.Slice:
		buf.WriteString("<array><data>")
		for i := 0; i < val.Len(); i++ {
			buf.WriteString("<value>")
			if err := encodeValue(buf, val.Index(i).Interface()); err != nil {
				return err
			}
			buf.WriteString("</value>")
		}
		buf.WriteString("</data></array>")
	case reflect.Map:
		if val.Type().Key().Kind() != reflect.String {
			return errors.New("xmlrpc: struct keys must be strings")
		}
		buf.WriteString("<struct>")
		for _, key := range val.MapKeys() {
			buf.WriteString("<member><name>")
			buf.WriteString(escape(key.String()))
			buf.WriteString("</name><value>")
			if err := encodeValue(buf, val.MapIndex(key).Interface()); err != nil {
				return err
			}
			buf.WriteString("</value></member>")
		}
		buf.WriteString("</struct>")
	default:
		return errors.Errorf("xmlrpc: cannot encode %T", v)
	}
	return nil
}

func encodeRequest(buf *bytes.Buffer, method string, args ...interface{}) error {
	buf.WriteString(xml.Header)
	buf.WriteString("<methodCall><methodName>")
	buf.WriteString(escape(method))
	buf.WriteString("</methodName><params>")
	for _, arg := range args {
		buf.WriteString("<param><value>")
		if err := encodeValue(buf, arg); err != nil {
			return err
		}
		buf.WriteString("</value></param>")
	}
	buf.WriteString("</params></methodCall>")
	return nil
}

func encodeResponse(buf *bytes.Buffer, value interface{}) error {
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><params><param><value>")
	if err := encodeValue(buf, value); err != nil {
		return err
	}
	buf.WriteString("</value></param></params></methodResponse>")
	return nil
}

func encodeFault(buf *bytes.Buffer, code int32, message string) error {
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><fault><value>")
	fault := map[string]interface{}{
		"faultCode":   code,
		"faultString": message,
	}
	if err := encodeValue(buf, fault); err != nil {
		return err
	}
	buf.WriteString("</value></fault></methodResponse>")
	return nil
}

func nextStart(d *xml.Decoder) (xml.StartElement, error) {
	for {
		token, err := d.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func expectStart(d *xml.Decoder, name string) (xml.StartElement, error) {
	start, err := nextStart(d)
	if err != nil {
		return xml.StartElement{}, err
	}
	if start.Name.Local != name {
		return xml.StartElement{}, errors.Errorf("xmlrpc: expected <%s>, got <%s>", name, start.Name.Local)
	}
	return start, nil
}

// readCharData returns the character data of the element just opened
// and leaves the decoder right after it. An immediate end element
// yields the empty string.
func readCharData(d *xml.Decoder, elem string) (string, error) {
	token, err := d.Token()
	if err != nil {
		return "", err
	}
	switch t := token.(type) {
	case xml.CharData:
		return string(t.Copy()), nil
	case xml.EndElement:
		if t.Name.Local == elem {
			return "", nil
		}
	}
	return "", errors.Errorf("xmlrpc: <%s> holds no character data", elem)
}

// decodeValue parses a value after its <value> tag has been consumed,
// leaving the decoder past the matching </value>. Scalars map to
// bool, int32, float64, string and []byte; composites to []interface{}
// and map[string]interface{}.
func decodeValue(d *xml.Decoder) (interface{}, error) {
	token, err := d.Token()
	if err != nil {
		return nil, err
	}

	switch t := token.(type) {
	case xml.CharData:
		// An untyped value is a string, but whitespace between tags
		// also arrives as character data and has to be skipped.
		text := string(t.Copy())
		if strings.TrimSpace(text) == "" {
			return decodeValue(d)
		}
		d.Skip() // </value>
		return text, nil
	case xml.EndElement:
		// <value></value> is an empty string.
		return "", nil
	case xml.StartElement:
		return decodeTypedValue(d, t.Name.Local)
	}
	return nil, errors.New("xmlrpc: malformed value")
}

func decodeTypedValue(d *xml.Decoder, kind string) (interface{}, error) {
	closeScalar := func() {
		d.Skip() // type element
		d.Skip() // </value>
	}
	switch kind {
	case "boolean":
		text, err := readCharData(d, kind)
		if err != nil {
			return nil, err
		}
		switch strings.TrimSpace(text) {
		case "0":
			closeScalar()
			return false, nil
		case "1":
			closeScalar()
			return true, nil
		}
		return nil, errors.Errorf("xmlrpc: invalid boolean %q", text)
	case "i4", "int":
		text, err := readCharData(d, kind)
		if err != nil {
			return nil, err
		}
		i, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, "xmlrpc: invalid int")
		}
		closeScalar()
		return int32(i), nil
	case "double":
		text, err := readCharData(d, kind)
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, errors.Wrap(err, "xmlrpc: invalid double")
		}
		closeScalar()
		return f, nil
	case "string":
		text, err := readCharData(d, kind)
		if err != nil {
			return nil, err
		}
		if text == "" {
			// readCharData already consumed </string>.
			d.Skip() // </value>
			return "", nil
		}
		closeScalar()
		return text, nil
	case "base64":
		text, err := readCharData(d, kind)
		if err != nil {
			return nil, err
		}
		bs, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			return nil, errors.Wrap(err, "xmlrpc: invalid base64")
		}
		closeScalar()
		return bs, nil
	case "array":
		if _, err := expectStart(d, "data"); err != nil {
			return nil, err
		}
		var items []interface{}
		for {
			token, err := d.Token()
			if err != nil {
				return nil, err
			}
			switch t := token.(type) {
			case xml.StartElement:
				if t.Name.Local == "value" {
					item, err := decodeValue(d)
					if err != nil {
						return nil, err
					}
					items = append(items, item)
				}
			case xml.EndElement:
				if t.Name.Local == "array" {
					d.Skip() // </value>
					return items, nil
				}
			}
		}
	case "struct":
		members := make(map[string]interface{})
		var name string
		var value interface{}
		for {
			token, err := d.Token()
			if err != nil {
				return nil, err
			}
			switch t := token.(type) {
			case xml.StartElement:
				switch t.Name.Local {
				case "member":
				case "name":
					name, err = readCharData(d, "name")
					if err != nil {
						return nil, err
					}
				case "value":
					value, err = decodeValue(d)
					if err != nil {
						return nil, err
					}
				}
			case xml.EndElement:
				switch t.Name.Local {
				case "member":
					members[name] = value
				case "struct":
					d.Skip() // </value>
					return members, nil
				}
			}
		}
	case "dateTime.iso8601":
		return nil, errors.New("xmlrpc: dateTime values are not supported")
	}
	return nil, errors.Errorf("xmlrpc: unsupported value type <%s>", kind)
}

func decodeRequest(d *xml.Decoder) (string, []interface{}, error) {
	if _, err := expectStart(d, "methodCall"); err != nil {
		return "", nil, err
	}
	if _, err := expectStart(d, "methodName"); err != nil {
		return "", nil, err
	}
	method, err := readCharData(d, "methodName")
	if err != nil {
		return "", nil, err
	}
	if _, err := expectStart(d, "params"); err != nil {
		return "", nil, err
	}
	var args []interface{}
	for {
		token, err := d.Token()
		if err != nil {
			return "", nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "value" {
				arg, err := decodeValue(d)
				if err != nil {
					return "", nil, err
				}
				args = append(args, arg)
			}
		case xml.EndElement:
			if t.Name.Local == "params" {
				d.Skip()
				return method, args, nil
			}
		}
	}
}

// decodeResponse returns the result value and whether the response was
// a regular one; for faults, the fault struct comes back with ok=false.
func decodeResponse(d *xml.Decoder) (interface{}, bool, error) {
	if _, err := expectStart(d, "methodResponse"); err != nil {
		return nil, false, err
	}
	start, err := nextStart(d)
	if err != nil {
		return nil, false, err
	}
	switch start.Name.Local {
	case "params":
		if _, err := expectStart(d, "param"); err != nil {
			return nil, false, err
		}
		if _, err := expectStart(d, "value"); err != nil {
			return nil, false, err
		}
		result, err := decodeValue(d)
		if err != nil {
			return nil, false, err
		}
		return result, true, nil
	case "fault":
		if _, err := expectStart(d, "value"); err != nil {
			return nil, false, err
		}
		result, err := decodeValue(d)
		if err != nil {
			return nil, false, err
		}
		return result, false, nil
	}
	return nil, false, errors.Errorf("xmlrpc: unexpected response element <%s>", start.Name.Local)
}
