package meshbatch

import (
	"fmt"
	"testing"

	"github.com/gogpu/meshbatch/internal/parallel"
)

func benchQuads(b *testing.B, n int) (*View, *View, []Drawable) {
	b.Helper()
	buf, err := NewBuffer(nil, "bench", Float32, 4*QuadVertices*n)
	if err != nil {
		b.Fatal(err)
	}
	pos, _ := NewView(buf, 4, 0, 2)
	uv, _ := NewView(buf, 4, 2, 2)
	items := make([]Drawable, n)
	for i := range items {
		q, err := NewQuad(Rect{X0: -1, Y0: -1, X1: 1, Y1: 1}, TextureID(i%8), pos, uv)
		if err != nil {
			b.Fatal(err)
		}
		items[i] = q
	}
	return pos, uv, items
}

// BenchmarkBuildBatches measures sorting and inserting quads keyed by texture.
func BenchmarkBuildBatches(b *testing.B) {
	for _, n := range []int{16, 256, 4096} {
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			_, _, items := benchQuads(b, n)
			b.ReportAllocs()
			for b.Loop() {
				if _, err := BuildBatches(items, TextureKey); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkBuildBatchesParallel(b *testing.B) {
	pool := parallel.NewWorkerPool(0)
	defer pool.Close()
	_, _, items := benchQuads(b, 4096)
	b.ReportAllocs()
	for b.Loop() {
		if _, err := buildBatches(items, TextureKey, pool); err != nil {
			b.Fatal(err)
		}
	}
}
