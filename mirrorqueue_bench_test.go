package mirrorqueue

import "testing"

func BenchmarkPushBackNoGrowth(b *testing.B) {
	d, err := WithCapacity[int](b.N)
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.PushBack(i); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPushFrontNoGrowth(b *testing.B) {
	d, err := WithCapacity[int](b.N)
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.PushFront(i); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPushBackWithGrowth(b *testing.B) {
	d, err := WithCapacity[int](1)
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.PushBack(i); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPushPopAlternating(b *testing.B) {
	d, err := WithCapacity[int](1024)
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()

	for i := 0; i < 512; i++ {
		if err := d.PushBack(i); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.PushBack(i); err != nil {
			b.Fatal(err)
		}
		if _, ok := d.PopFront(); !ok {
			b.Fatal("unexpected empty deque")
		}
	}
}

func BenchmarkInsertMiddle(b *testing.B) {
	d, err := WithCapacity[int](b.N + 1)
	if err != nil {
		b.Fatal(err)
	}
	defer d.Close()

	for i := 0; i < b.N; i++ {
		if err := d.PushBack(i); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.Insert(d.Len()/2, i); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkShrinkToFit(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		d, err := WithCapacity[int](4096)
		if err != nil {
			b.Fatal(err)
		}
		if err := d.PushBack(1); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if err := d.ShrinkToFit(); err != nil {
			b.Fatal(err)
		}

		b.StopTimer()
		d.Close()
		b.StartTimer()
	}
}
