// Package cond provides the predicate tree of the query builder: immutable
// boolean conditions over schema fields that render to parameterized SQL or
// evaluate directly against materialized rows.
//
// # Building conditions
//
// Conditions are normally built through the fluent column API and combined
// with And, Or and Not:
//
//	c := cond.Col(Item.Field("listprice")).Between(10, 50).
//		And(cond.Col(Item.Field("status")).In("P", "S")).
//		Or(cond.Col(Item.Field("supplier")).IsNull())
//
// A condition holds no query-specific state. The same tree may be rendered
// for many queries, from many goroutines, with different contexts.
//
// # SEALED INTERFACE
//
// Condition is sealed with a marker method; only the types in this package
// implement it. Render and the evaluator switch over the closed set of
// variants:
//
//	Const                 1=1 / 1=0
//	Literal               raw SQL text
//	NotCondition          not (c), or not c for negated exists
//	AndCondition          (a and b ...)
//	OrCondition           (a or b ...)
//	Unary                 f is null / f is not null
//	Binary                f op ? | f op g | f op (subquery) | f op fn(...)
//	Ternary               f between ? and ?
//	InCondition           f in (?,?,...)
//	ExistsCondition       exists (subquery)
//
// And and Or flatten operands of their own kind, so And(And(a, b), c) is the
// same three-child node as And(a, b, c).
//
// # Rendering
//
// Render walks the tree against a *scope.Context and returns SQL text with
// positional ? placeholders plus the bindings in placeholder order. Subqueries
// render against a child context chained to the current one and their
// bindings are spliced in place.
//
// # In-memory evaluation
//
// Match evaluates a tree against a Row. It is a pure walk except for
// ExistsCondition, which runs its subquery when the subquery implements
// Counter; failures there are logged and count as no match. MatchStrict
// rejects ExistsCondition instead.
//
// BETWEEN evaluates as lower <= v < upper in memory, while SQL BETWEEN is
// inclusive on both ends. The divergence is kept on purpose; see DESIGN.md.
package cond
