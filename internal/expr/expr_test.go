package expr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var cols = []string{"name", "department", "salary", "active", "joined", "unit price"}

func row(name, dept string, salary any, active any, joined any, price any) []any {
	return []any{name, dept, salary, active, joined, price}
}

func TestMatchBasics(t *testing.T) {
	joined := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	alice := row("Alice", "Tech", int64(72000), true, joined, 2.5)
	bob := row("Bob", "Sales", nil, false, nil, nil)

	tests := []struct {
		src   string
		alice bool
		bob   bool
	}{
		{"department == 'Tech'", true, false},
		{"department = \"Tech\"", true, false},
		{"department != 'Tech'", false, true},
		{"salary >= 50000", true, false},
		{"salary < 50000", false, false},
		{"salary == None", false, true},
		{"salary != None", true, false},
		{"salary > 1000 and department == 'Tech'", true, false},
		{"salary > 1000 & department == 'Tech'", true, false},
		{"department == 'Sales' or salary > 100000", false, true},
		{"department == 'Sales' | salary > 100000", false, true},
		{"not department == 'Tech'", false, true},
		{"~(department == 'Tech')", false, true},
		{"department in ['Tech', 'Ops']", true, false},
		{"department not in ('Tech', 'Ops')", false, true},
		{"active", true, false},
		{"active == True", true, false},
		{"salary.isnull()", false, true},
		{"salary.notna()", true, false},
		{"name.str.startswith('Al')", true, false},
		{"name.str.contains('o')", false, true},
		{"name.str.endswith('b')", false, true},
		{"`unit price` > 2", true, false},
		{"`unit price` > -1.5", true, false},
		{"joined >= '2021-01-01'", true, false},
		{"joined < '2021-01-01'", false, false},
		{"40000 < salary <= 72000", true, false},
		{"salary == '72000'", true, false},
		{"department > 5", false, false},
		{"department != 5", true, true},
		{"(department == 'Tech' or department == 'Sales') and active", true, false},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			e, err := Compile(tc.src, cols)
			require.NoError(t, err)
			require.Equal(t, tc.alice, e.Match(alice), "alice")
			require.Equal(t, tc.bob, e.Match(bob), "bob")
		})
	}
}

func TestCountTechRows(t *testing.T) {
	e, err := Compile("department == 'Tech'", []string{"department"})
	require.NoError(t, err)

	n := 0
	for i := 0; i < 30; i++ {
		dept := "Sales"
		if i%5 < 2 {
			dept = "Tech"
		}
		if e.Match([]any{dept}) {
			n++
		}
	}
	require.Equal(t, 12, n)
}

func TestSyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"   ",
		"salary >",
		"salary > > 1",
		"(salary > 1",
		"salary > 1)",
		"'unterminated",
		"`col",
		"salary ! 1",
		"dept in 'Tech'",
		"dept in ['a' 'b']",
		"name.upper()",
		"name.str.contains(1)",
		"salary > 1 and",
		"- 'x'",
		"1.2.3 > 0",
		"salary @ 1",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestUnknownColumn(t *testing.T) {
	_, err := Compile("missing == 1", cols)
	require.ErrorIs(t, err, ErrUnknownColumn)

	_, err = Compile("department in ['Tech', other]", cols)
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestColumnsAndString(t *testing.T) {
	e, err := Parse("salary > 10 and (department == 'Tech' or salary < 5) and `unit price`.notnull()")
	require.NoError(t, err)
	require.Equal(t, []string{"salary", "department", "unit price"}, e.Columns())
	require.Equal(t,
		"(((`salary` > 10) and ((`department` == \"Tech\") or (`salary` < 5))) and `unit price`.notnull())",
		e.String())
}

func TestUnboundNeverMatches(t *testing.T) {
	e, err := Parse("salary > 1")
	require.NoError(t, err)
	require.False(t, e.Match([]any{int64(5)}))
	require.NoError(t, e.Bind([]string{"salary"}))
	require.True(t, e.Match([]any{int64(5)}))
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	e, err := Compile("a == 1 AND NOT b == 2 OR a In [3]", []string{"a", "b"})
	require.NoError(t, err)
	require.True(t, e.Match([]any{int64(1), int64(3)}))
	require.False(t, e.Match([]any{int64(1), int64(2)}))
	require.True(t, e.Match([]any{int64(3), int64(2)}))
}

func FuzzParse(f *testing.F) {
	for _, s := range []string{"a == 1", "`x y` in [1, 'b']", "not (a > -2.5e3)", "a.str.contains('x') | b"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, src string) {
		e, err := Parse(src)
		if err != nil {
			return
		}
		_ = e.String()
		_ = e.Columns()
	})
}
