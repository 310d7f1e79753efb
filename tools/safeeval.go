// Copyright (C) 2026 Mr5niper
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later


package tools

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
)

// EvalArithmetic evaluates expr as a restricted arithmetic expression:
// literal numbers and the operators + - * / % (integer division is `/` on
// ints per Go syntax, so the expression language instead accepts `//` via
// a rewrite below), unary +/-, and `**` for exponentiation. Any other AST
// node — identifiers, calls, indexing — is rejected (spec.md §4.9's "safe
// arithmetic evaluator").
func EvalArithmetic(expr string) (float64, error) {
	rewritten := rewriteOperators(expr)

	node, err := parser.ParseExpr(rewritten)
	if err != nil {
		return 0, fmt.Errorf("invalid expression: %w", err)
	}
	return evalNode(node)
}

// rewriteOperators translates the spec's `//` (floor division) and `**`
// (power) into a form parser.ParseExpr already understands by funnelling
// them through sentinel binary operators recognized in evalNode.
func rewriteOperators(expr string) string {
	out := make([]rune, 0, len(expr))
	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '*' {
			out = append(out, '^')
			i++
			continue
		}
		if runes[i] == '/' && i+1 < len(runes) && runes[i+1] == '/' {
			out = append(out, '&')
			i++
			continue
		}
		out = append(out, runes[i])
	}
	return string(out)
}

func evalNode(n ast.Expr) (float64, error) {
	switch v := n.(type) {
	case *ast.BasicLit:
		if v.Kind != token.INT && v.Kind != token.FLOAT {
			return 0, fmt.Errorf("unsupported literal kind")
		}
		var f float64
		if _, err := fmt.Sscanf(v.Value, "%g", &f); err != nil {
			return 0, fmt.Errorf("invalid numeric literal %q", v.Value)
		}
		return f, nil

	case *ast.ParenExpr:
		return evalNode(v.X)

	case *ast.UnaryExpr:
		x, err := evalNode(v.X)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			return -x, nil
		default:
			return 0, fmt.Errorf("unsupported unary operator %s", v.Op)
		}

	case *ast.BinaryExpr:
		left, err := evalNode(v.X)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(v.Y)
		if err != nil {
			return 0, err
		}
		switch v.Op {
		case token.ADD:
			return left + right, nil
		case token.SUB:
			return left - right, nil
		case token.MUL:
			return left * right, nil
		case token.QUO:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return left / right, nil
		case token.REM:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return math.Mod(left, right), nil
		case token.XOR:
			return math.Pow(left, right), nil
		case token.AND:
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return math.Floor(left / right), nil
		default:
			return 0, fmt.Errorf("unsupported operator %s", v.Op)
		}

	default:
		return 0, fmt.Errorf("unsupported expression node %T", n)
	}
}
