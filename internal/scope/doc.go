// Package scope implements the per-query resolution context that predicate
// trees are rendered against.
//
// A Context lists every table instance visible to one query: the tables it
// selects from and the tables it joins. Unbound field references are resolved
// against that list. Nested subqueries get a child Context chained to the
// enclosing one, so a correlated subquery can reference tables of the outer
// query.
//
// # Resolution
//
// Deref resolves a schema.Field to the column text to emit:
//
//  1. A bound field (explicit alias) is returned unchanged.
//  2. Otherwise every instance whose table is the field's owning table and
//     whose alias was generated by the query builder is a candidate. Instances
//     with explicit aliases never match unbound fields. Candidates are
//     collected over the whole chain, innermost first, before judging.
//  3. Zero candidates is a FieldNotFoundError, more than one is an
//     AmbiguousFieldError, exactly one yields "name.column".
//
// # Immutability
//
// Contexts are built once per render and never modified. Methods that look
// like setters (WithMaxFields, WithSchemaMap) return a new Context. A Context,
// including its parent chain, may be read by concurrent renders.
//
// The dialect and the schema remapping are properties of the root of the
// chain. Child contexts read them through Root.
package scope
