package mount

import "testing"

func BenchmarkRoundRobinSelection(b *testing.B) {
	mounts := make([]Mount, 10)
	for i := 0; i < 10; i++ {
		mounts[i] = NewDirMount("/data/mount", 1)
	}

	sel := NewRoundRobinSelector(mounts)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := sel.SelectMount("/index.html"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRoundRobinConcurrent(b *testing.B) {
	mounts := make([]Mount, 10)
	for i := 0; i < 10; i++ {
		mounts[i] = NewDirMount("/data/mount", 1)
	}

	sel := NewRoundRobinSelector(mounts)

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := sel.SelectMount("/index.html"); err != nil {
				b.Fatal(err)
			}
		}
	})
}
