// Package tuple provides immutable fixed-arity aggregates produced by the
// combination operators in deferred and pipeline.
package tuple

import "fmt"

// Tuple2 holds two heterogeneous values.
type Tuple2[A, B any] struct {
	item1 A
	item2 B
}

// Of2 builds a Tuple2.
func Of2[A, B any](a A, b B) Tuple2[A, B] {
	return Tuple2[A, B]{item1: a, item2: b}
}

// Item1 returns the first value.
func (t Tuple2[A, B]) Item1() A { return t.item1 }

// Item2 returns the second value.
func (t Tuple2[A, B]) Item2() B { return t.item2 }

func (t Tuple2[A, B]) String() string {
	return fmt.Sprintf("(%v, %v)", t.item1, t.item2)
}

// Tuple3 holds three heterogeneous values.
type Tuple3[A, B, C any] struct {
	item1 A
	item2 B
	item3 C
}

// Of3 builds a Tuple3.
func Of3[A, B, C any](a A, b B, c C) Tuple3[A, B, C] {
	return Tuple3[A, B, C]{item1: a, item2: b, item3: c}
}

// Item1 returns the first value.
func (t Tuple3[A, B, C]) Item1() A { return t.item1 }

// Item2 returns the second value.
func (t Tuple3[A, B, C]) Item2() B { return t.item2 }

// Item3 returns the third value.
func (t Tuple3[A, B, C]) Item3() C { return t.item3 }

func (t Tuple3[A, B, C]) String() string {
	return fmt.Sprintf("(%v, %v, %v)", t.item1, t.item2, t.item3)
}
