// Package tmpl renders {{name}}-style placeholder templates.
//
// Placeholders name dotted paths into a variable source, typically the
// appliance settings document. A '%' escapes the byte that follows it, which
// is how a template produces literal braces or a literal percent sign.
package tmpl

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrTemplate reports a malformed template or an undefined variable.
var ErrTemplate = errors.New("template error")

const escape = '%'

// VarSource resolves variable names to their rendered values.
type VarSource interface {
	Var(name string) (string, bool)
}

// VarMap is a VarSource backed by a plain map.
type VarMap map[string]string

// Var implements VarSource.
func (m VarMap) Var(name string) (string, bool) {
	value, ok := m[name]
	return value, ok
}

// Render substitutes every {{name}} placeholder in src with the value vars
// resolves for it. Rendering fails if a placeholder is unterminated or
// empty, if a variable is not defined, or if the input ends in the middle of
// an escape sequence.
func Render(src []byte, vars VarSource) ([]byte, error) {
	var out bytes.Buffer
	for i := 0; i < len(src); {
		switch {
		case src[i] == escape:
			if i+1 >= len(src) {
				return nil, fmt.Errorf("%w: dangling escape at end of input", ErrTemplate)
			}
			out.WriteByte(src[i+1])
			i += 2
		case src[i] == '{' && i+1 < len(src) && src[i+1] == '{':
			end := bytes.Index(src[i+2:], []byte("}}"))
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated placeholder", ErrTemplate)
			}
			name := strings.TrimSpace(string(src[i+2 : i+2+end]))
			if name == "" || strings.ContainsAny(name, "{}\n") {
				return nil, fmt.Errorf("%w: invalid placeholder %q", ErrTemplate, name)
			}
			value, ok := vars.Var(name)
			if !ok {
				return nil, fmt.Errorf("%w: variable %q is not defined", ErrTemplate, name)
			}
			out.WriteString(value)
			i += end + 4
		default:
			out.WriteByte(src[i])
			i++
		}
	}
	return out.Bytes(), nil
}
