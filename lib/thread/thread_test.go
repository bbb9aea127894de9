package thread

import (
	"fmt"
	"sync/atomic"
	"testing"
)

func TestMap(t *testing.T) {
	tests := []struct {
		n, workers int
	}{
		{0, 4}, {1, 4}, {10, 1}, {10, 3}, {100, 16}, {5, 0},
	}

	for i := range tests {
		out := make([]int, tests[i].n)
		err := Map(tests[i].n, tests[i].workers, func(j int) error {
			out[j] = j * j
			return nil
		})
		if err != nil {
			t.Errorf("%d) Expected no error, got '%s'.", i, err.Error())
		}
		for j := range out {
			if out[j] != j*j {
				t.Errorf("%d) Expected out[%d] = %d, got %d.", i, j, j*j, out[j])
				break
			}
		}
	}
}

func TestMapErrors(t *testing.T) {
	var calls int64
	err := Map(20, 4, func(i int) error {
		atomic.AddInt64(&calls, 1)
		if i == 7 || i == 13 {
			return fmt.Errorf("job %d", i)
		}
		return nil
	})

	if err == nil || err.Error() != "job 7" {
		t.Errorf("Expected error 'job 7', got %v.", err)
	}
	if calls != 20 {
		t.Errorf("Expected 20 calls, got %d.", calls)
	}
}

func TestSet(t *testing.T) {
	if err := Set(0); err == nil {
		t.Errorf("Expected Set(0) to fail.")
	}
	if err := Set(1 << 20); err == nil {
		t.Errorf("Expected Set(1 << 20) to fail.")
	}
	if err := Set(-1); err != nil {
		t.Errorf("Expected Set(-1) to succeed, got '%s'.", err.Error())
	}
}
