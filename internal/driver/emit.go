package driver

import (
	"fmt"
	"io"
	"strings"
)

// EmitFormat selects the rendering Write produces.
type EmitFormat string

const (
	EmitText    EmitFormat = "text"
	EmitMsgpack EmitFormat = "msgpack"
)

// ParseEmit validates an emit setting. The empty string means text.
func ParseEmit(s string) (EmitFormat, error) {
	switch EmitFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", EmitText:
		return EmitText, nil
	case EmitMsgpack:
		return EmitMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported emit format %q (expected text|msgpack)", s)
	}
}

// Write renders res to w.
func (res *Result) Write(w io.Writer, format EmitFormat) error {
	var err error
	switch format {
	case EmitMsgpack:
		_, err = w.Write(res.Encoded)
	default:
		_, err = io.WriteString(w, res.Text)
	}
	return err
}
