package fingerprint

import (
	"bytes"
	"strings"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	payload := []byte("styrelseprotokoll 2024-03-12: beslut om stamrenovering etapp 2")

	first, err := FromReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("fingerprint first: %v", err)
	}
	second, err := FromReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("fingerprint second: %v", err)
	}

	if first != second {
		t.Fatalf("identical bytes must yield identical fingerprints: %#v vs %#v", first, second)
	}
	if len(first.SHA256) != 64 {
		t.Fatalf("expected hex sha256, got %q", first.SHA256)
	}
	if first.SizeBytes != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), first.SizeBytes)
	}
}

func TestFingerprintChunkedWritesMatchOneShot(t *testing.T) {
	payload := []byte(strings.Repeat("årsredovisning för brf solsidan ", 64))

	oneShot, err := FromReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("one-shot: %v", err)
	}

	h := NewHasher()
	for i := 0; i < len(payload); i += 7 {
		end := i + 7
		if end > len(payload) {
			end = len(payload)
		}
		if _, err := h.Write(payload[i:end]); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
	}

	if got := h.Fingerprint(); got != oneShot {
		t.Fatalf("chunked fingerprint differs from one-shot: %#v vs %#v", got, oneShot)
	}
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	a, err := FromReader(strings.NewReader("faktura 1001 hiss service"))
	if err != nil {
		t.Fatalf("fingerprint a: %v", err)
	}
	b, err := FromReader(strings.NewReader("faktura 1002 hiss service"))
	if err != nil {
		t.Fatalf("fingerprint b: %v", err)
	}

	if a.SHA256 == b.SHA256 {
		t.Fatal("different content must not collide on sha256")
	}
}

func TestSimilarContentHasCloserSignatures(t *testing.T) {
	base := strings.Repeat("underhållsplan tak fasad fönster trapphus källare garage ", 40)
	nearCopy := base + "bilaga a"
	unrelated := strings.Repeat("zqxwv 9917 kompressor frekvensomriktare cirkulationspump ", 40)

	fpBase, err := FromReader(strings.NewReader(base))
	if err != nil {
		t.Fatalf("fingerprint base: %v", err)
	}
	fpNear, err := FromReader(strings.NewReader(nearCopy))
	if err != nil {
		t.Fatalf("fingerprint near: %v", err)
	}
	fpFar, err := FromReader(strings.NewReader(unrelated))
	if err != nil {
		t.Fatalf("fingerprint far: %v", err)
	}

	near := HammingDistance(fpBase.SimHash, fpNear.SimHash)
	far := HammingDistance(fpBase.SimHash, fpFar.SimHash)
	if near >= far {
		t.Fatalf("expected near-copy distance (%d) below unrelated distance (%d)", near, far)
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{name: "identical", a: 0xdeadbeef, b: 0xdeadbeef, want: 0},
		{name: "one bit", a: 0, b: 1, want: 1},
		{name: "all bits", a: 0, b: ^uint64(0), want: 64},
		{name: "symmetric", a: 0b1010, b: 0b0101, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HammingDistance(tt.a, tt.b); got != tt.want {
				t.Fatalf("HammingDistance(%#x, %#x) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := HammingDistance(tt.b, tt.a); got != tt.want {
				t.Fatalf("distance must be symmetric, got %d want %d", got, tt.want)
			}
		})
	}
}
