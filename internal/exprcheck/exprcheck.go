// Package exprcheck statically analyzes HCL expressions: the variables they
// reference and the functions they call. The builder uses it to reject
// expressions that could never evaluate before any work is scheduled.
package exprcheck

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
)

// TraversalKey returns a canonical string for a traversal, e.g. `shard.index`.
func TraversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

// Analyze returns the unique variable traversals and called function names
// of exprs, both sorted. Nil expressions are ignored.
func Analyze(exprs ...hcl.Expression) ([]hcl.Traversal, []string) {
	traversals := make(map[string]hcl.Traversal)
	functions := make(map[string]struct{})

	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, t := range expr.Variables() {
			traversals[TraversalKey(t)] = t
		}
		if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
			walkForFunctions(syntaxExpr, functions)
		}
	}

	keys := make([]string, 0, len(traversals))
	for k := range traversals {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	refs := make([]hcl.Traversal, 0, len(keys))
	for _, k := range keys {
		refs = append(refs, traversals[k])
	}

	funcs := make([]string, 0, len(functions))
	for f := range functions {
		funcs = append(funcs, f)
	}
	slices.Sort(funcs)
	return refs, funcs
}

// Scope is what an expression may use.
type Scope struct {
	// Roots are the allowed root variable names.
	Roots []string
	// Attrs restricts the first attribute of a root, e.g. upstream to the
	// declared dependency names. Roots absent from Attrs are unrestricted.
	Attrs map[string][]string
	Funcs []string
}

// Check reports every reference or function call outside scope.
func Check(scope Scope, exprs ...hcl.Expression) error {
	refs, funcs := Analyze(exprs...)
	var problems []string
	for _, t := range refs {
		root := t.RootName()
		if !slices.Contains(scope.Roots, root) {
			problems = append(problems, fmt.Sprintf("%s: unknown variable %q", t.SourceRange(), root))
			continue
		}
		allowed, restricted := scope.Attrs[root]
		if !restricted || len(t) < 2 {
			continue
		}
		if attr, ok := t[1].(hcl.TraverseAttr); ok && !slices.Contains(allowed, attr.Name) {
			problems = append(problems, fmt.Sprintf("%s: %q is not one of %v", t.SourceRange(), TraversalKey(t), allowed))
		}
	}
	for _, f := range funcs {
		if !slices.Contains(scope.Funcs, f) {
			problems = append(problems, fmt.Sprintf("unknown function %q", f))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid expression: %s", strings.Join(problems, "; "))
	}
	return nil
}

// walkForFunctions recursively walks the syntax tree collecting function
// calls, which Variables() does not report.
func walkForFunctions(expr hclsyntax.Expression, functions map[string]struct{}) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		functions[e.Name] = struct{}{}
		for _, arg := range e.Args {
			walkForFunctions(arg, functions)
		}
	case *hclsyntax.BinaryOpExpr:
		walkForFunctions(e.LHS, functions)
		walkForFunctions(e.RHS, functions)
	case *hclsyntax.ConditionalExpr:
		walkForFunctions(e.Condition, functions)
		walkForFunctions(e.TrueResult, functions)
		walkForFunctions(e.FalseResult, functions)
	case *hclsyntax.UnaryOpExpr:
		walkForFunctions(e.Val, functions)
	case *hclsyntax.TemplateExpr:
		for _, part := range e.Parts {
			walkForFunctions(part, functions)
		}
	case *hclsyntax.TemplateWrapExpr:
		walkForFunctions(e.Wrapped, functions)
	case *hclsyntax.TemplateJoinExpr:
		walkForFunctions(e.Tuple, functions)
	case *hclsyntax.TupleConsExpr:
		for _, item := range e.Exprs {
			walkForFunctions(item, functions)
		}
	case *hclsyntax.ObjectConsExpr:
		for _, item := range e.Items {
			walkForFunctions(item.KeyExpr, functions)
			walkForFunctions(item.ValueExpr, functions)
		}
	case *hclsyntax.ForExpr:
		walkForFunctions(e.CollExpr, functions)
		walkForFunctions(e.KeyExpr, functions)
		walkForFunctions(e.ValExpr, functions)
		walkForFunctions(e.CondExpr, functions)
	case *hclsyntax.IndexExpr:
		walkForFunctions(e.Collection, functions)
		walkForFunctions(e.Key, functions)
	case *hclsyntax.SplatExpr:
		walkForFunctions(e.Source, functions)
		walkForFunctions(e.Each, functions)
	case *hclsyntax.ParenthesesExpr:
		walkForFunctions(e.Expression, functions)
	}
}
