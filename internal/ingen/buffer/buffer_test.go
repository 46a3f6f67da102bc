package buffer

import "testing"

func testFactory() *Factory {
	return NewFactory(Config{
		SmallSamples: 64, MediumSamples: 512, LargeSamples: 4096,
		SequenceCap: 16, MaxPerTier: 8,
	}, 64, nil)
}

func TestFactoryGetAudioIsZeroed(t *testing.T) {
	t.Parallel()

	f := testFactory()
	b := f.Get(KindAudio, 1, 1)
	if len(b.Data) != 64 {
		t.Fatalf("len(Data) = %d, want 64", len(b.Data))
	}
	for _, v := range b.Data {
		if v != 0 {
			t.Fatalf("expected zeroed buffer, found %v", v)
		}
	}
	if b.RefCount() != 1 {
		t.Fatalf("RefCount() = %d, want 1", b.RefCount())
	}
}

func TestReleaseReturnsToPoolAndReuse(t *testing.T) {
	t.Parallel()

	f := testFactory()
	b := f.Get(KindAudio, 1, 1)
	b.Data[0] = 42
	b.Release()
	if b.RefCount() != 0 {
		t.Fatalf("RefCount() after release = %d", b.RefCount())
	}

	b2 := f.Get(KindAudio, 1, 1)
	if b2.Data[0] != 0 {
		t.Fatalf("reused buffer not cleared: %v", b2.Data[0])
	}
}

func TestControlCopyFromAudioSamplesLastValue(t *testing.T) {
	t.Parallel()

	f := testFactory()
	audio := f.Get(KindAudio, 1, 1)
	for i := range audio.Data {
		audio.Data[i] = float32(i)
	}
	ctrl := f.Get(KindControl, 2, 2)
	ctrl.Copy(Range{Start: 0, End: 10}, audio)
	if ctrl.Value != 9 {
		t.Fatalf("ctrl.Value = %v, want 9 (last sample in range)", ctrl.Value)
	}
}

func TestAudioCopyFromControlBroadcasts(t *testing.T) {
	t.Parallel()

	f := testFactory()
	ctrl := f.Get(KindControl, 2, 2)
	ctrl.Value = 5
	audio := f.Get(KindAudio, 1, 1)
	audio.Copy(Range{Start: 0, End: len(audio.Data)}, ctrl)
	for _, v := range audio.Data {
		if v != 5 {
			t.Fatalf("expected broadcast value 5, got %v", v)
		}
	}
}

func TestAccumulateSumsInPlace(t *testing.T) {
	t.Parallel()

	f := testFactory()
	dst := f.Get(KindAudio, 1, 1)
	src := f.Get(KindAudio, 1, 1)
	for i := range dst.Data {
		dst.Data[i] = 1
		src.Data[i] = 2
	}
	dst.Accumulate(Range{Start: 0, End: len(dst.Data)}, src)
	for _, v := range dst.Data {
		if v != 3 {
			t.Fatalf("accumulate result = %v, want 3", v)
		}
	}
}

func TestScaleMultipliesInPlace(t *testing.T) {
	t.Parallel()

	f := testFactory()
	b := f.Get(KindAudio, 1, 1)
	for i := range b.Data {
		b.Data[i] = 2
	}
	b.Scale(Range{Start: 0, End: len(b.Data)}, 0.5)
	for _, v := range b.Data {
		if v != 1 {
			t.Fatalf("scale result = %v, want 1", v)
		}
	}
}

func TestAppendEventRejectsOverflow(t *testing.T) {
	t.Parallel()

	f := testFactory()
	seq := f.Get(KindSequence, 3, 3)
	for i := 0; i < seq.SequenceCap; i++ {
		if !seq.AppendEvent(i, 99, nil) {
			t.Fatalf("append %d unexpectedly rejected", i)
		}
	}
	if seq.AppendEvent(seq.SequenceCap, 99, nil) {
		t.Fatal("expected overflow append to be rejected")
	}
	if seq.TruncatedCount != 1 {
		t.Fatalf("TruncatedCount = %d, want 1", seq.TruncatedCount)
	}
}

func TestMixingConservationLaw(t *testing.T) {
	t.Parallel()

	// N audio outputs each holding constant c, summed and divided by N,
	// must reproduce c exactly (the poly->mono fan-in rule in Port).
	f := testFactory()
	const n = 4
	const c = 3.0

	dst := f.Get(KindAudio, 1, 1)
	for i := 0; i < n; i++ {
		src := f.Get(KindAudio, 1, 1)
		for j := range src.Data {
			src.Data[j] = c
		}
		dst.Accumulate(Range{Start: 0, End: len(dst.Data)}, src)
	}
	dst.Scale(Range{Start: 0, End: len(dst.Data)}, 1.0/n)
	for _, v := range dst.Data {
		if v != c {
			t.Fatalf("mixing conservation violated: got %v, want %v", v, c)
		}
	}
}
