// Package query builds select statements over schema tables.
//
// A Select owns the table list of one query level. Tables added without an
// alias get an automatic one (the table name, then name_2, name_3, ...), and
// unbound fields in its conditions are resolved against those instances.
// Tables added with FromAs or JoinAs carry an explicit alias and are only
// reachable through bound fields.
//
// A *Select is immutable: every builder method returns a new value, so a
// query can be shared between goroutines and reused as a subquery in any
// number of conditions.
//
//	items := query.From(petstore.Item).
//		Where(cond.Col(petstore.Item.Field("listprice")).Between(10, 50))
//	sql, args, err := items.SQL()
//
// Select implements cond.Subquery and cond.Counter, so it can appear on the
// right-hand side of a comparison, inside in (...) and inside exists (...).
package query
