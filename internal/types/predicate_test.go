package types

import "testing"

func TestPredicateEvaluate(t *testing.T) {
	tu := Tuple{Values: []Value{
		{Type: Fixed(Int), I: 10},
		{Type: Fixed(Int), I: 20},
	}}
	cases := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"eq-true", Predicate{0, Eq, Value{Type: Fixed(Int), I: 10}}, true},
		{"eq-false", Predicate{0, Eq, Value{Type: Fixed(Int), I: 11}}, false},
		{"lt-true", Predicate{0, Lt, Value{Type: Fixed(Int), I: 11}}, true},
		{"gte-true", Predicate{1, Gte, Value{Type: Fixed(Int), I: 20}}, true},
		{"neq-true", Predicate{1, Neq, Value{Type: Fixed(Int), I: 5}}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.p.Evaluate(tu)
			if err != nil {
				t.Fatal(err)
			}
			if got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestPredicateNullIsMonotoneFalse(t *testing.T) {
	tu := Tuple{Values: []Value{Null(Fixed(Int))}}
	p := Predicate{0, Eq, Value{Type: Fixed(Int), I: 0}}
	got, err := p.Evaluate(tu)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("predicate against a NULL column should evaluate false")
	}

	p2 := Predicate{0, Neq, Value{Type: Fixed(Int), I: 0}}
	got2, err := p2.Evaluate(tu)
	if err != nil {
		t.Fatal(err)
	}
	if got2 {
		t.Error("<> against a NULL column should also evaluate false (monotone-false), not true")
	}
}

func TestPredicateColumnIndexOutOfRange(t *testing.T) {
	tu := Tuple{Values: []Value{{Type: Fixed(Int), I: 1}}}
	p := Predicate{5, Eq, Value{Type: Fixed(Int), I: 1}}
	if _, err := p.Evaluate(tu); err == nil {
		t.Error("expected error for out-of-range column index")
	}
}
