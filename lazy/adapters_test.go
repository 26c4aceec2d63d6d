package lazy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type countingSupplier struct {
	Supplier[string]
	pulls int
	hints []Hints
}

func (c *countingSupplier) Next(ctx context.Context, hints Hints) (string, bool, error) {
	c.pulls++
	c.hints = append(c.hints, hints)
	return c.Supplier.Next(ctx, hints)
}

func TestMapIsLazy(t *testing.T) {
	src := &countingSupplier{Supplier: FromSlice("a", "b", "c")}
	m := Map(src, func(_ context.Context, s string, _ Hints) (string, error) {
		return strings.ToUpper(s), nil
	})
	if src.pulls != 0 {
		t.Fatalf("Map pulled from its source before being pulled itself")
	}

	hints := NewHints(Watchers)
	v, ok, err := m.Next(context.TODO(), hints)
	if err != nil || !ok || v != "A" {
		t.Fatalf("Unexpected first element: %q ok=%v err=%v", v, ok, err)
	}
	if src.pulls != 1 {
		t.Errorf("Source pulls do not match.\nWanted:%v\nGot:%v\n", 1, src.pulls)
	}
	if src.hints[0] != hints {
		t.Errorf("Hints were not forwarded: got %v", src.hints[0])
	}
}

func TestMapError(t *testing.T) {
	want := errors.New("bad element")
	m := Map(FromSlice(1, 2), func(_ context.Context, n int, _ Hints) (int, error) {
		return 0, want
	})

	if _, _, err := m.Next(context.TODO(), Hints{}); !errors.Is(err, want) {
		t.Errorf("Expected %v, got %v", want, err)
	}
	if _, _, err := m.Next(context.TODO(), Hints{}); !errors.Is(err, want) {
		t.Errorf("Error was not sticky, got %v", err)
	}
}

func TestFlatMap(t *testing.T) {
	s := FlatMap(FromSlice("a b", "", "c"), func(_ context.Context, s string, _ Hints) ([]string, error) {
		return strings.Fields(s), nil
	})

	got, err := Collect(context.TODO(), s, Hints{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("Elements mismatch (-want +got):\n%s", diff)
	}
}

func TestFlatMapKeepsOrder(t *testing.T) {
	s := FlatMap(FromSlice(1, 2), func(_ context.Context, n int, _ Hints) ([]string, error) {
		if n == 1 {
			return []string{"l1", "l2", "l3", "l4"}, nil
		}
		return []string{"m1", "m2", "m3"}, nil
	})

	got, err := Collect(context.TODO(), s, Hints{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff([]string{"l1", "l2", "l3", "l4", "m1", "m2", "m3"}, got); diff != "" {
		t.Errorf("Elements mismatch (-want +got):\n%s", diff)
	}
}

func TestMapForwardsHints(t *testing.T) {
	src := &countingSupplier{Supplier: FromSlice("a", "b")}

	var seen []Hints
	m := Map(src, func(_ context.Context, s string, hints Hints) (string, error) {
		seen = append(seen, hints)
		return s, nil
	})

	pulls := []Hints{NewHints(Comments), NewHints(Links, History)}
	for i, hints := range pulls {
		if _, ok, err := m.Next(context.TODO(), hints); err != nil || !ok {
			t.Fatalf("Pull %d failed: ok=%v err=%v", i, ok, err)
		}
	}

	if diff := cmp.Diff(pulls, src.hints, cmp.AllowUnexported(Hints{})); diff != "" {
		t.Errorf("Source hints mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pulls, seen, cmp.AllowUnexported(Hints{})); diff != "" {
		t.Errorf("Mapping function hints mismatch (-want +got):\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	s := Filter(FromSlice(1, 2, 3, 4, 5), func(n int) bool { return n%2 == 1 })

	got, err := Collect(context.TODO(), s, Hints{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3, 5}, got); diff != "" {
		t.Errorf("Elements mismatch (-want +got):\n%s", diff)
	}
}

func TestLimitStopsPulling(t *testing.T) {
	src := &countingSupplier{Supplier: FromSlice("a", "b", "c", "d")}

	got, err := Collect(context.TODO(), Limit[string](src, 2), Hints{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("Elements mismatch (-want +got):\n%s", diff)
	}
	if src.pulls != 2 {
		t.Errorf("Source pulls do not match.\nWanted:%v\nGot:%v\n", 2, src.pulls)
	}
}

func TestSupplierFuncExhaustion(t *testing.T) {
	var calls int
	s := SupplierFunc(func(context.Context, Hints) (int, bool, error) {
		calls++
		if calls > 1 {
			return 0, false, nil
		}
		return calls, true, nil
	})

	for i := 0; i < 4; i++ {
		_, _, _ = s.Next(context.TODO(), Hints{})
	}
	if calls != 2 {
		t.Errorf("Function revived after exhaustion: %d calls", calls)
	}
}

func TestDrainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Drain(ctx, FromSlice(1), Hints{}, func(int) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
