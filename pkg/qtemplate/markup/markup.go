// Package markup parses widget template files into an immutable element
// tree. Templates are XML documents; text content is ignored and
// attribute values are kept verbatim for the expression evaluator.
package markup

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
)

// Attr is one attribute in document order.
type Attr struct {
	Name  string
	Value string
}

// Element is a parsed markup node.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []*Element
	Line     int
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// String renders the element's opening tag, for error messages.
func (e *Element) String() string {
	var sb strings.Builder
	sb.WriteString("<" + e.Tag)
	for _, a := range e.Attrs {
		fmt.Fprintf(&sb, " %s=%q", a.Name, a.Value)
	}
	sb.WriteString(">")
	return sb.String()
}

// Parse reads one document from r. name is used in error messages.
func Parse(r io.Reader, name string) (*Element, error) {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.Entity = xml.HTMLEntity

	var (
		root  *Element
		stack []*Element
	)
	for {
		line, _ := d.InputPos()
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, terrors.Wrap("PARSE-0004", err, nil).WithFile(name).WithLine(line)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Tag: qualified(t.Name), Line: line}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, terrors.Wrap("PARSE-0004", fmt.Errorf("second root element <%s>", el.Tag), nil).
						WithFile(name).WithLine(line)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if root == nil {
		return nil, terrors.New("PARSE-0008", nil).WithFile(name)
	}
	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, terrors.Wrap("PARSE-0004", fmt.Errorf("element <%s> is never closed", open.Tag), nil).
			WithFile(name).WithLine(open.Line)
	}
	return root, nil
}

// ParseString parses a document held in memory.
func ParseString(src, name string) (*Element, error) {
	return Parse(strings.NewReader(src), name)
}

// ParseFile parses the document at path.
func ParseFile(path string) (*Element, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening template: %w", err)
	}
	defer f.Close()
	return Parse(f, path)
}

// qualified rejoins a name the decoder split at a colon.
func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
