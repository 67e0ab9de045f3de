package pipeline

import (
	"context"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name      string
		generator func() GenerateFunc[int]
		check     func(items <-chan int, errc <-chan error)
	}{
		{
			name: "generates 10 numbers",
			generator: func() GenerateFunc[int] {
				i := 0
				return func() (int, error) {
					i++
					if i <= 10 {
						return rand.Int(), nil
					}
					return 0, assert.AnError
				}
			},
			check: func(items <-chan int, errc <-chan error) {
				count := 0
				for range items {
					count++
				}
				assert.Equal(t, 10, count)
				assert.Equal(t, assert.AnError, <-errc)
			},
		},
		{
			name: "skips values",
			generator: func() GenerateFunc[int] {
				i := 0
				return func() (int, error) {
					i++
					if i <= 10 {
						return 0, ErrSkip
					}
					return 0, assert.AnError
				}
			},
			check: func(items <-chan int, errc <-chan error) {
				count := 0
				for range items {
					count++
				}
				assert.Equal(t, 0, count)
				assert.Equal(t, assert.AnError, <-errc)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.check(Generate(context.TODO(), test.generator()))
		})
	}
}

func TestGroup(t *testing.T) {
	tests := []struct {
		name   string
		inc    <-chan int
		belong func() BelongFunc[int]
		check  func(items <-chan []int, errc <-chan error)
	}{
		{
			name: "group by number",
			inc:  generateInt(t, []int{0, 0, 0, 1, 1, 1}),
			belong: func() BelongFunc[int] {
				return func(item int, group []int) (bool, error) {
					return item == group[0], nil
				}
			},
			check: func(items <-chan []int, errc <-chan error) {
				var groups [][]int
				for group := range items {
					groups = append(groups, group)
				}
				assert.Equal(t, [][]int{{0, 0, 0}, {1, 1, 1}}, groups)
				assert.Nil(t, <-errc)
			},
		},
		{
			name: "belong returns error - drain happens",
			inc:  generateInt(t, []int{0, 0, 0, 1, 1, 1}),
			belong: func() BelongFunc[int] {
				i := 0
				return func(item int, group []int) (bool, error) {
					if i == 4 {
						return false, assert.AnError
					}
					i++
					return item == group[0], nil
				}
			},
			check: func(items <-chan []int, errc <-chan error) {
				var lastGroup []int
				for group := range items {
					lastGroup = group
				}
				assert.Equal(t, 2, len(lastGroup))
				assert.Equal(t, assert.AnError, <-errc)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.check(Group(context.TODO(), test.inc, test.belong()))
		})
	}
}

func TestSink(t *testing.T) {
	tests := []struct {
		name   string
		inc    <-chan int
		sinker EachFunc[int]
		check  func(err error)
	}{
		{
			name: "runs sink on all items",
			inc:  generateInt(t, []int{1, 2, 3, 4, 5}),
			sinker: func(val int) error {
				return nil
			},
			check: func(err error) {
				assert.Nil(t, err)
			},
		},
		{
			name: "sinker interrupts the sink",
			inc:  generateInt(t, []int{1, 2, 3, 4, 5}),
			sinker: func(val int) error {
				if val > 3 {
					return assert.AnError
				}
				return nil
			},
			check: func(err error) {
				assert.Equal(t, assert.AnError, err)
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.check(Sink(context.TODO(), test.inc, test.sinker))
		})
	}
}

func TestWorkerPool(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		inc         <-chan int
		worker      WorkerFunc[int, int]
		check       func(outc <-chan int, errc <-chan error)
	}{
		{
			name:        "2 multipliers",
			concurrency: 2,
			inc:         generateInt(t, []int{1, 2, 3, 4, 5}),
			worker: func(ctx context.Context, item int, outc chan<- int) error {
				outc <- item * 10
				return nil
			},
			check: func(outc <-chan int, errc <-chan error) {
				total := 0
				for item := range outc {
					total += item
				}
				assert.Equal(t, 150, total)
				assert.Nil(t, <-errc)
			},
		},
		{
			name:        "2 multipliers, only the first three items succeed",
			concurrency: 2,
			inc:         generateInt(t, []int{1, 2, 3, 4, 5}),
			worker: func(ctx context.Context, item int, outc chan<- int) error {
				if item > 3 {
					return assert.AnError
				}
				outc <- item * 10
				return nil
			},
			check: func(outc <-chan int, errc <-chan error) {
				total := 0
				for item := range outc {
					total += item
				}
				assert.Equal(t, 60, total)
				assert.Equal(t, assert.AnError, <-errc)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.check(WorkerPool(context.TODO(), test.concurrency, test.inc, test.worker))
		})
	}
}

func TestMergeErrors(t *testing.T) {
	errc1 := make(chan error, 1)
	errc2 := make(chan error, 1)
	errc3 := make(chan error, 1)
	errc2 <- io.EOF

	merged := MergeErrors(context.TODO(), errc1, errc2, errc3)
	assert.Equal(t, io.EOF, <-merged)

	close(errc1)
	close(errc2)
	close(errc3)
	_, open := <-merged
	assert.False(t, open)
}

func generateInt(t *testing.T, items []int) <-chan int {
	t.Helper()
	i := 0
	outc, _ := Generate(context.TODO(), func() (int, error) {
		if i >= len(items) {
			return 0, assert.AnError
		}
		ret := items[i]
		i++
		return ret, nil
	})
	return outc
}
