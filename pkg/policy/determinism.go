package policy

import (
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// determinismIssue names one non-deterministic-in-spirit construct found
// in a rule condition's parsed AST.
type determinismIssue struct {
	Message string
}

// checkDeterministic walks expr's AST rejecting constructs spec.md §4.5
// rule 6 / §9's determinism mandate forbids in a rule condition: floating
// point literals (no canonical decimal form across hosts), now() (wall
// clock, never reproducible), and keys()/values() (map iteration order is
// unspecified). Grounded on the teacher's celdp.CELDPValidator /
// governance.cel_deterministic.go, which walk the identical
// *exprpb.Expr shape CEL's Parse produces for this cel-go version.
func checkDeterministic(expr *exprpb.Expr) []determinismIssue {
	var issues []determinismIssue
	walkDeterminism(expr, &issues)
	return issues
}

func walkDeterminism(e *exprpb.Expr, issues *[]determinismIssue) {
	if e == nil {
		return
	}

	switch k := e.ExprKind.(type) {
	case *exprpb.Expr_ConstExpr:
		if _, isFloat := k.ConstExpr.ConstantKind.(*exprpb.Constant_DoubleValue); isFloat {
			*issues = append(*issues, determinismIssue{Message: "floating point literals are forbidden"})
		}

	case *exprpb.Expr_CallExpr:
		call := k.CallExpr
		switch call.Function {
		case "now":
			*issues = append(*issues, determinismIssue{Message: "now() is forbidden"})
		case "keys", "values":
			*issues = append(*issues, determinismIssue{Message: "map iteration (keys/values) is forbidden: order is unspecified"})
		}
		if call.Target != nil {
			walkDeterminism(call.Target, issues)
		}
		for _, arg := range call.Args {
			walkDeterminism(arg, issues)
		}

	case *exprpb.Expr_SelectExpr:
		walkDeterminism(k.SelectExpr.Operand, issues)

	case *exprpb.Expr_ListExpr:
		for _, el := range k.ListExpr.Elements {
			walkDeterminism(el, issues)
		}

	case *exprpb.Expr_StructExpr:
		for _, entry := range k.StructExpr.Entries {
			if entry.GetMapKey() != nil {
				walkDeterminism(entry.GetMapKey(), issues)
			}
			walkDeterminism(entry.Value, issues)
		}

	case *exprpb.Expr_ComprehensionExpr:
		comp := k.ComprehensionExpr
		walkDeterminism(comp.IterRange, issues)
		walkDeterminism(comp.AccuInit, issues)
		walkDeterminism(comp.LoopCondition, issues)
		walkDeterminism(comp.LoopStep, issues)
		walkDeterminism(comp.Result, issues)
	}
}
