package query_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/tobsdb/tobsql/internal/builder"
	. "github.com/tobsdb/tobsql/internal/query"
	"gotest.tools/assert"
)

const testSchema = `
$TABLE users {
    id Int key(primary) ai(true)
    name String
    age Int index(true)
    role String default("member")
}

$TABLE posts {
    id Int key(primary) ai(true)
    author Int
    title String
}

$TABLE flags {
    id Int key(primary)
    a Int
    b Int
    c Int
}

$TABLE tags {
    name String key(primary)
    count Int default(0)
}
`

func newTestExecutor(t *testing.T, opts builder.Options) *Executor {
	s, err := builder.NewSchemaFromString(testSchema, opts)
	assert.NilError(t, err)
	return NewExecutor(s, nil)
}

func run(t *testing.T, e *Executor, table string, mods ...Modifier) *Result {
	t.Helper()
	res, err := e.Exec(table, mods)
	assert.NilError(t, err)
	return res
}

func seedUsers(t *testing.T, e *Executor) {
	run(t, e, "users", Upsert(
		builder.Row{"name": "a", "age": 20},
		builder.Row{"name": "b", "age": 20},
		builder.Row{"name": "c", "age": 30},
	))
}

func TestInsertRoundTrip(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())

	res := run(t, e, "users", Upsert(
		builder.Row{"name": "a", "age": 20},
		builder.Row{"name": "b", "age": "31", "role": "admin"},
	))
	assert.Equal(t, res.Change.Describe, builder.ChangeInserted)
	assert.Equal(t, res.Change.AffectedCount, 2)

	expected := []builder.Row{
		{"id": 1, "name": "a", "age": 20, "role": "member"},
		{"id": 2, "name": "b", "age": 31, "role": "admin"},
	}
	assert.DeepEqual(t, res.Change.AffectedRows, expected)
	assert.DeepEqual(t, run(t, e, "users", Select()).Rows, expected)
}

func TestUpsert(t *testing.T) {
	t.Run("existing primary key merges", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		seedUsers(t, e)

		res := run(t, e, "users", Upsert(builder.Row{"id": 2, "age": 40}))
		assert.Equal(t, res.Change.Describe, builder.ChangeModified)
		assert.DeepEqual(t, res.Rows, []builder.Row{{"id": 2, "name": "b", "age": 40, "role": "member"}})
		assert.Equal(t, len(run(t, e, "users", Select()).Rows), 3)
	})

	t.Run("where merges into every match", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		seedUsers(t, e)

		res := run(t, e, "users", Upsert(builder.Row{"role": "admin"}), Where("age", "=", 20))
		assert.Equal(t, res.Change.Describe, builder.ChangeModified)
		assert.Equal(t, res.Change.AffectedCount, 2)

		rows := run(t, e, "users", Select("name"), Where("role", "=", "admin")).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"name": "a"}, {"name": "b"}})
	})

	t.Run("explicit key moves the counter", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		run(t, e, "users", Upsert(builder.Row{"id": 10, "name": "x"}))
		res := run(t, e, "users", Upsert(builder.Row{"name": "y"}))
		assert.Equal(t, res.Rows[0].Get("id"), 11)
	})

	t.Run("repeated key in one batch", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		res := run(t, e, "users", Upsert(
			builder.Row{"id": 1, "name": "x"},
			builder.Row{"id": 1, "age": 5},
		))
		assert.Equal(t, res.Change.AffectedCount, 1)
		assert.DeepEqual(t, res.Rows, []builder.Row{{"id": 1, "name": "x", "age": 5, "role": "member"}})
	})

	t.Run("failed batch writes nothing", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		_, err := e.Exec("users", []Modifier{Upsert(
			builder.Row{"name": "x"},
			builder.Row{"name": "y", "bogus": true},
		)})
		assert.Assert(t, errors.Is(err, ErrQueryArgument))
		assert.Equal(t, len(run(t, e, "users", Select()).Rows), 0)
		assert.Equal(t, e.Schema.History.Len(), 0)

		res := run(t, e, "users", Upsert(builder.Row{"name": "z"}))
		assert.Equal(t, res.Rows[0].Get("id"), 1)
	})

	t.Run("missing non-generated key", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		_, err := e.Exec("tags", []Modifier{Upsert(builder.Row{"count": 1})})
		assert.Assert(t, errors.Is(err, ErrQueryArgument))
	})

	t.Run("primary key cannot change", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		seedUsers(t, e)
		_, err := e.Exec("users", []Modifier{Upsert(builder.Row{"id": 9}), Where("id", "=", 1)})
		assert.ErrorContains(t, err, "cannot change primary key")
	})
}

func TestWhere(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())
	run(t, e, "users", Upsert(builder.Row{"name": "a", "age": 20}))

	assert.Equal(t, len(run(t, e, "users", Select(), Where("age", ">", 25)).Rows), 0)
	assert.Equal(t, len(run(t, e, "users", Select(), Where("age", "<", 25)).Rows), 1)

	run(t, e, "users", Upsert(builder.Row{"name": "b", "age": 30}))
	rows := run(t, e, "users", Select("name"), Where("age", ">", 25)).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"name": "b"}})

	rows = run(t, e, "users", Select("name"), Where("id", "IN", []any{2, 7})).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"name": "b"}})

	rows = run(t, e, "users", Select("name"), Where("age", "BETWEEN", []any{19, 30})).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"name": "a"}})
}

func TestWhereSequencing(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())
	run(t, e, "flags", Upsert(
		builder.Row{"id": 1, "a": 1, "b": 2, "c": 0},
		builder.Row{"id": 2, "a": 1, "b": 0, "c": 3},
		builder.Row{"id": 3, "a": 0, "b": 0, "c": 3},
		builder.Row{"id": 4, "a": 0, "b": 2, "c": 0},
	))

	rows := run(t, e, "flags", Select("id"), Where(
		[]any{"a", "=", 1}, "AND", []any{"b", "=", 2}, "OR", []any{"c", "=", 3},
	)).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"id": 1}, {"id": 2}, {"id": 3}})

	t.Run("compound condition as one list", func(t *testing.T) {
		rows := run(t, e, "flags", Select("id"), Where(
			[]any{[]any{"a", "=", 1}, "AND", []any{"b", "=", 2}},
		)).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"id": 1}})
	})
}

func TestGroupBy(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())
	seedUsers(t, e)

	t.Run("count per group", func(t *testing.T) {
		rows := run(t, e, "users", Select("COUNT(*)"), GroupBy(Asc("age"))).Rows
		assert.DeepEqual(t, rows, []builder.Row{
			{"age": 20, "COUNT(*)": 2},
			{"age": 30, "COUNT(*)": 1},
		})
	})

	t.Run("descending groups", func(t *testing.T) {
		rows := run(t, e, "users", Select("age", "COUNT(*) AS n"), GroupBy(Desc("age"))).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"age": 30, "n": 1}, {"age": 20, "n": 2}})
	})

	t.Run("having", func(t *testing.T) {
		rows := run(t, e, "users", Select("COUNT(*) AS n"), GroupBy(Asc("age")), Having("n", ">", 1)).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"age": 20, "n": 2}})
	})

	t.Run("without functions keeps groups contiguous", func(t *testing.T) {
		run(t, e, "users", Upsert(builder.Row{"name": "d", "age": 20}))
		rows := run(t, e, "users", Select("name"), GroupBy(Desc("age"))).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"name": "c"}, {"name": "a"}, {"name": "b"}, {"name": "d"}})
	})

	t.Run("whole table", func(t *testing.T) {
		rows := run(t, e, "users", Select("SUM(age) AS total", "MAX(age) AS oldest")).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"total": 90, "oldest": 30}})
	})

	t.Run("empty input", func(t *testing.T) {
		rows := run(t, e, "users", Select("COUNT(*)"), Where("age", ">", 100)).Rows
		assert.Equal(t, len(rows), 0)
	})
}

func TestOrderAndPaging(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())
	seedUsers(t, e)

	rows := run(t, e, "users", Select("name"), OrderBy(Desc("age"), Desc("name"))).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"name": "c"}, {"name": "b"}, {"name": "a"}})

	rows = run(t, e, "users", Select("name AS n"), OrderBy(Asc("name")), Offset(1), Limit(1)).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"n": "b"}})

	rows = run(t, e, "users", Select(), Offset(5)).Rows
	assert.Equal(t, len(rows), 0)

	rows = run(t, e, "users", Select(), Limit(0)).Rows
	assert.Equal(t, len(rows), 0)
}

func TestDelete(t *testing.T) {
	t.Run("where", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		seedUsers(t, e)

		res := run(t, e, "users", Delete(), Where("age", "=", 20))
		assert.Equal(t, res.Change.Describe, builder.ChangeDeleted)
		assert.Equal(t, res.Change.AffectedCount, 2)
		assert.Equal(t, res.Rows[0].Get("name"), "a")

		rows := run(t, e, "users", Select("name")).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"name": "c"}})
	})

	t.Run("columns", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		seedUsers(t, e)

		res := run(t, e, "users", Delete("age"), Where("id", "=", 1))
		assert.Equal(t, res.Change.Describe, builder.ChangeModified)
		rows := run(t, e, "users", Select(), Where("id", "=", 1)).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"id": 1, "name": "a", "age": nil, "role": "member"}})

		_, err := e.Exec("users", []Modifier{Delete("id")})
		var qe *QueryError
		assert.Assert(t, errors.As(err, &qe))
		assert.Equal(t, qe.Status(), http.StatusConflict)
	})

	t.Run("all rows", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		seedUsers(t, e)
		res := run(t, e, "users", Delete())
		assert.Equal(t, res.Change.AffectedCount, 3)
		assert.Equal(t, len(run(t, e, "users", Select()).Rows), 0)
	})

	t.Run("no match records nothing", func(t *testing.T) {
		e := newTestExecutor(t, builder.DefaultOptions())
		seedUsers(t, e)
		res := run(t, e, "users", Delete(), Where("age", "=", 99))
		assert.Equal(t, res.Change.AffectedCount, 0)
		assert.Equal(t, e.Schema.History.Len(), 1)
	})
}

func TestDropResetsAutoIncrement(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())
	seedUsers(t, e)

	res := run(t, e, "users", Drop())
	assert.Equal(t, res.Change.Describe, builder.ChangeDeleted)
	assert.Equal(t, res.Change.AffectedCount, 3)

	res = run(t, e, "users", Upsert(builder.Row{"name": "again"}))
	assert.Equal(t, res.Rows[0].Get("id"), 1)
	assert.Equal(t, len(run(t, e, "users", Select()).Rows), 1)
}

func TestJoin(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())
	run(t, e, "users", Upsert(builder.Row{"name": "a"}, builder.Row{"name": "b"}))
	run(t, e, "posts", Upsert(
		builder.Row{"author": 1, "title": "first"},
		builder.Row{"author": 1, "title": "second"},
		builder.Row{"author": 3, "title": "orphan"},
	))

	join := func(kind JoinType) []builder.Row {
		return run(t, e, "users", Select("users.name", "posts.title"),
			Join(kind, "posts", "posts.author", "=", "users.id")).Rows
	}

	t.Run("left", func(t *testing.T) {
		assert.DeepEqual(t, join(JoinLeft), []builder.Row{
			{"users.name": "a", "posts.title": "first"},
			{"users.name": "a", "posts.title": "second"},
			{"users.name": "b", "posts.title": nil},
		})
	})

	t.Run("inner", func(t *testing.T) {
		assert.Equal(t, len(join(JoinInner)), 2)
	})

	t.Run("right", func(t *testing.T) {
		rows := join(JoinRight)
		assert.Equal(t, len(rows), 3)
		assert.DeepEqual(t, rows[2], builder.Row{"users.name": nil, "posts.title": "orphan"})
	})

	t.Run("outer", func(t *testing.T) {
		rows := join(JoinOuter)
		assert.Equal(t, len(rows), 4)
		assert.DeepEqual(t, rows[3], builder.Row{"users.name": nil, "posts.title": "orphan"})
	})

	t.Run("cross", func(t *testing.T) {
		rows := run(t, e, "users", Select(), Join(JoinCross, "posts")).Rows
		assert.Equal(t, len(rows), 6)
		assert.Equal(t, rows[0].Get("users.id"), 1)
		assert.Equal(t, rows[0].Get("posts.id"), 1)
	})

	t.Run("where filters joined rows", func(t *testing.T) {
		rows := run(t, e, "users", Select("posts.title"),
			Join(JoinLeft, "posts", "author", "=", "users.id"),
			Where("posts.title", "LIKE", "sec")).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"posts.title": "second"}})
	})

	t.Run("where with bare column names", func(t *testing.T) {
		rows := run(t, e, "users", Select("posts.title"),
			Join(JoinInner, "posts", "author", "=", "users.id"),
			Where("title", "LIKE", "sec")).Rows
		assert.DeepEqual(t, rows, []builder.Row{{"posts.title": "second"}})

		rows = run(t, e, "users", Select("users.name", "posts.title"),
			Join(JoinInner, "posts", "author", "=", "users.id"),
			Where("name", "=", "a"), // users.name, posts has no name
		).Rows
		assert.Equal(t, len(rows), 2)
	})

	t.Run("memoized rows follow new versions", func(t *testing.T) {
		assert.Assert(t, e.Schema.Joins.Len() > 0)
		run(t, e, "posts", Upsert(builder.Row{"title": "edited"}), Where("id", "=", 1))
		assert.Equal(t, join(JoinInner)[0].Get("posts.title"), "edited")
	})

	t.Run("argument errors", func(t *testing.T) {
		_, err := e.Exec("users", []Modifier{Select(), Join(JoinLeft, "posts")})
		assert.Assert(t, errors.Is(err, ErrQueryArgument))

		_, err = e.Exec("users", []Modifier{Select(), {Type: "join", Args: map[string]any{"type": "left"}}})
		assert.Assert(t, errors.Is(err, ErrQueryArgument))

		_, err = e.Exec("users", []Modifier{Select(), Join(JoinCross, "nope")})
		var qe *QueryError
		assert.Assert(t, errors.As(err, &qe))
		assert.Equal(t, qe.Status(), http.StatusNotFound)
	})
}

func TestJoinStringLiterals(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())
	run(t, e, "users", Upsert(builder.Row{"name": "x"}))
	run(t, e, "posts", Upsert(
		builder.Row{"author": 1, "title": "name"},
		builder.Row{"author": 1, "title": "x"},
	))

	rows := run(t, e, "users", Select("posts.title"),
		Join(JoinInner, "posts", "posts.title", "=", "name")).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"posts.title": "name"}})

	rows = run(t, e, "users", Select("posts.title"),
		Join(JoinInner, "posts", "posts.title", "=", "users.name")).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"posts.title": "x"}})
}

func TestQueryCache(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())
	seedUsers(t, e)
	users := e.Schema.Tables.Get("users")

	first := run(t, e, "users", Select("name"), Where("age", "=", 20)).Rows
	assert.Equal(t, users.Cache.Len(), 1)
	second := run(t, e, "users", Select("name"), Where("age", "=", 20)).Rows
	assert.DeepEqual(t, first, second)
	assert.Equal(t, users.Cache.Len(), 1)

	second[0].Set("name", "changed by caller")
	third := run(t, e, "users", Select("name"), Where("age", "=", 20)).Rows
	assert.DeepEqual(t, first, third)

	run(t, e, "users", Upsert(builder.Row{"name": "z"}), Where("name", "=", "a"))
	assert.Equal(t, users.Cache.Len(), 0)
	rows := run(t, e, "users", Select("name"), Where("age", "=", 20)).Rows
	assert.DeepEqual(t, rows, []builder.Row{{"name": "z"}, {"name": "b"}})

	run(t, e, "users", Select("COUNT(*)"), GroupBy(Asc("age")))
	rows = run(t, e, "users", Select("COUNT(*)"), GroupBy(Asc("age"))).Rows
	assert.Equal(t, len(rows), 2)

	t.Run("disabled", func(t *testing.T) {
		e := newTestExecutor(t, builder.Options{History: true})
		seedUsers(t, e)
		run(t, e, "users", Select())
		assert.Equal(t, e.Schema.Tables.Get("users").Cache.Len(), 0)
	})
}

func TestPlanErrors(t *testing.T) {
	e := newTestExecutor(t, builder.DefaultOptions())

	bad := [][]Modifier{
		{},
		{Where("id", "=", 1)},
		{Select(), Drop()},
		{Select(), Select()},
		{Select(), {Type: "explode"}},
		{Select(), {Type: "where", Args: "id = 1"}},
		{Select(), Limit(-1)},
		{Drop(), Where("id", "=", 1)},
		{Delete(), OrderBy(Asc("id"))},
		{Upsert(builder.Row{"a": 1}, builder.Row{"a": 2}), Where("id", "=", 1)},
		{Select("MEDIAN(age)")},
		{{Type: "upsert", Args: "row"}},
	}
	for _, mods := range bad {
		_, err := e.Exec("users", mods)
		assert.Assert(t, errors.Is(err, ErrQueryArgument), "%v", mods)
	}

	_, err := e.Exec("nope", []Modifier{Select()})
	assert.ErrorContains(t, err, "Table nope not found")
}

func TestFingerprint(t *testing.T) {
	a, ok := Fingerprint("users", []Modifier{Select("name"), Where("age", ">", 1)})
	assert.Assert(t, ok)
	b, _ := Fingerprint("users", []Modifier{Select("name"), Where("age", ">", 1)})
	c, _ := Fingerprint("posts", []Modifier{Select("name"), Where("age", ">", 1)})
	assert.Equal(t, a, b)
	assert.Assert(t, a != c)
}
