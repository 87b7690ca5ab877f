package ast

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// FprintJSON writes a JSON representation of the tree to w.
func FprintJSON(w io.Writer, node Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ToMap(node))
}

// FprintYAML writes a YAML representation of the tree to w.
func FprintYAML(w io.Writer, node Node) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToMap(node)); err != nil {
		return err
	}
	return enc.Close()
}

// ToMap converts a tree to nested maps and slices for the encoders.
// Statements keep their structure; expressions are rendered as source text
// with their type.
func ToMap(node Node) interface{} {
	if isNil(node) {
		return nil
	}

	switch n := node.(type) {
	case Expr:
		m := map[string]interface{}{
			"text": String(n),
		}
		if n.Type() != nil {
			m["type"] = n.Type().String()
		}
		return m

	case *Block:
		m := map[string]interface{}{
			"kind":  "Block",
			"stmts": mapStmts(n.Stmts),
		}
		if n.Kind != PlainBlock {
			m["region"] = n.Kind.String()
			m["range"] = fmt.Sprintf("[IL_%04x, IL_%04x)", n.Start, n.End)
		}
		if n.LexicalScope {
			m["scope"] = true
		}
		return m

	case *ExprStmt:
		return stmtMap("ExprStmt", "x", n.X)

	case *LocalDecl:
		m := map[string]interface{}{
			"kind": "LocalDecl",
			"name": n.Local.Name,
			"type": typeString(n.Local.Type),
		}
		if n.Init != nil {
			m["init"] = ToMap(n.Init)
		}
		return m

	case *If:
		m := map[string]interface{}{
			"kind": "If",
			"cond": ToMap(n.Cond),
			"then": ToMap(n.Then),
		}
		if n.Else != nil {
			m["else"] = ToMap(n.Else)
		}
		return m

	case *Goto:
		return map[string]interface{}{"kind": "Goto", "label": n.Label.Name}

	case *LabelStmt:
		return map[string]interface{}{"kind": "Label", "label": n.Label.Name}

	case *Switch:
		var cases []interface{}
		for _, c := range n.Cases {
			cases = append(cases, ToMap(c))
		}
		return map[string]interface{}{
			"kind":  "Switch",
			"x":     ToMap(n.X),
			"cases": cases,
		}

	case *Case:
		m := map[string]interface{}{"body": ToMap(n.Body)}
		if n.Default {
			m["default"] = true
		} else {
			m["value"] = n.Value
		}
		return m

	case *Try:
		m := map[string]interface{}{
			"kind": "Try",
			"body": ToMap(n.Body),
		}
		if len(n.Catches) > 0 {
			var catches []interface{}
			for _, c := range n.Catches {
				catches = append(catches, ToMap(c))
			}
			m["catches"] = catches
		}
		if n.Finally != nil {
			m["finally"] = ToMap(n.Finally)
		}
		if n.Fault != nil {
			m["fault"] = ToMap(n.Fault)
		}
		return m

	case *Catch:
		m := map[string]interface{}{"body": ToMap(n.Body)}
		if n.Type != nil {
			m["type"] = n.Type.String()
		}
		if n.Var != nil {
			m["var"] = n.Var.Name
		}
		if n.Filter != nil {
			m["filter"] = ToMap(n.Filter)
		}
		if n.FilterExpr != nil {
			m["when"] = ToMap(n.FilterExpr)
		}
		return m

	case *Lock:
		return map[string]interface{}{
			"kind":  "Lock",
			"guard": ToMap(n.Guard),
			"body":  ToMap(n.Body),
		}

	case *Using:
		return map[string]interface{}{
			"kind":    "Using",
			"acquire": ToMap(n.Acquire),
			"body":    ToMap(n.Body),
		}

	case *While:
		return map[string]interface{}{
			"kind": "While",
			"cond": ToMap(n.Cond),
			"body": ToMap(n.Body),
		}

	case *DoWhile:
		return map[string]interface{}{
			"kind": "DoWhile",
			"body": ToMap(n.Body),
			"cond": ToMap(n.Cond),
		}

	case *For:
		m := map[string]interface{}{
			"kind": "For",
			"body": ToMap(n.Body),
		}
		if n.Init != nil {
			m["init"] = ToMap(n.Init)
		}
		if n.Cond != nil {
			m["cond"] = ToMap(n.Cond)
		}
		if n.Post != nil {
			m["post"] = ToMap(n.Post)
		}
		return m

	case *Break:
		return map[string]interface{}{"kind": "Break"}
	case *Continue:
		return map[string]interface{}{"kind": "Continue"}
	case *Return:
		return stmtMap("Return", "x", n.X)
	case *Throw:
		return stmtMap("Throw", "x", n.X)
	case *Push:
		return stmtMap("Push", "x", n.X)
	case *EndFinally:
		return map[string]interface{}{"kind": "EndFinally"}
	case *EndFilter:
		return stmtMap("EndFilter", "x", n.X)
	case *YieldReturn:
		return stmtMap("YieldReturn", "x", n.X)
	case *YieldBreak:
		return map[string]interface{}{"kind": "YieldBreak"}
	case *Empty:
		return map[string]interface{}{"kind": "Empty"}
	}

	return map[string]interface{}{"kind": fmt.Sprintf("%T", node)}
}

func stmtMap(kind, key string, x Expr) map[string]interface{} {
	m := map[string]interface{}{"kind": kind}
	if x != nil {
		m[key] = ToMap(x)
	}
	return m
}

func mapStmts(list []Stmt) []interface{} {
	out := make([]interface{}, len(list))
	for i, s := range list {
		out[i] = ToMap(s)
	}
	return out
}
