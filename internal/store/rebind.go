package store

import (
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bebedizo/DKO/internal/scope"
)

// bindType maps a dialect to its sqlx placeholder style.
func bindType(d scope.Dialect) int {
	switch d {
	case scope.Postgres:
		return sqlx.DOLLAR
	case scope.SQLServer:
		return sqlx.AT
	default:
		return sqlx.QUESTION
	}
}

// Rebind rewrites ? placeholders for the dialect: $1, $2, ... for
// PostgreSQL and @p1, @p2, ... for SQL Server. SQLite and MySQL keep ?.
// Question marks inside quoted literals or identifiers and after -- are
// left alone.
func Rebind(d scope.Dialect, query string) string {
	bt := bindType(d)
	if bt == sqlx.QUESTION {
		return query
	}
	masked, hidden := maskLiteralMarks(query)
	out := sqlx.Rebind(bt, masked)
	if hidden {
		out = strings.ReplaceAll(out, string(maskByte), "?")
	}
	return out
}

// maskByte stands in for question marks that are not placeholders while
// sqlx rebinds the rest.
const maskByte = '\x00'

// maskLiteralMarks replaces ? inside quotes and -- comments with maskByte.
// A query that already holds maskByte is returned as is.
func maskLiteralMarks(query string) (string, bool) {
	if strings.IndexByte(query, maskByte) >= 0 || !strings.ContainsAny(query, `'"-`) {
		return query, false
	}
	b := []byte(query)
	hidden := false
	hide := func(from, to int) {
		for i := from; i < to; i++ {
			if b[i] == '?' {
				b[i] = maskByte
				hidden = true
			}
		}
	}
	for i := 0; i < len(b); i++ {
		switch ch := b[i]; {
		case ch == '\'' || ch == '"':
			end := skipQuoted(query, i, ch)
			hide(i, end)
			i = end - 1
		case ch == '-' && i+1 < len(b) && b[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			hide(i, i+end)
			i += end - 1
		}
	}
	return string(b), hidden
}

// skipQuoted returns the index just past the quoted run starting at start.
// A doubled quote character is an escaped quote.
func skipQuoted(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != quote {
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}
