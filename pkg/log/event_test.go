package log

import (
	"bytes"
	"testing"
)

func TestLayerString(t *testing.T) {
	tests := []struct {
		layer Layer
		want  string
	}{
		{LayerTransport, "TRANSPORT"},
		{LayerWire, "WIRE"},
		{LayerClient, "CLIENT"},
		{Layer(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.layer.String()
		if got != tt.want {
			t.Errorf("Layer(%d).String() = %q, want %q", tt.layer, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategoryChunk, "CHUNK"},
		{CategoryMessage, "MESSAGE"},
		{CategoryState, "STATE"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.cat.String()
		if got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.cat, got, tt.want)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeDelivered, "DELIVERED"},
		{OutcomeSuppressed, "SUPPRESSED"},
		{Outcome(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.outcome.String()
		if got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}

func TestParseLayerAndCategory(t *testing.T) {
	for _, l := range []Layer{LayerTransport, LayerWire, LayerClient} {
		got, ok := ParseLayer(l.String())
		if !ok || got != l {
			t.Errorf("ParseLayer(%q) = %v, %v", l.String(), got, ok)
		}
	}
	if _, ok := ParseLayer("SERVICE"); ok {
		t.Error("ParseLayer accepted unknown name")
	}

	for _, c := range []Category{CategoryChunk, CategoryMessage, CategoryState, CategoryError} {
		got, ok := ParseCategory(c.String())
		if !ok || got != c {
			t.Errorf("ParseCategory(%q) = %v, %v", c.String(), got, ok)
		}
	}
	if _, ok := ParseCategory("chunk"); ok {
		t.Error("ParseCategory should be case sensitive")
	}
}

func TestNewChunkEvent(t *testing.T) {
	t.Run("Small", func(t *testing.T) {
		chunk := []byte("{\"eventId\":\"a\"}\n")
		ev := NewChunkEvent(chunk, 1)

		if ev.Size != len(chunk) {
			t.Errorf("Size = %d, want %d", ev.Size, len(chunk))
		}
		if ev.Fragments != 1 {
			t.Errorf("Fragments = %d, want 1", ev.Fragments)
		}
		if !bytes.Equal(ev.Data, chunk) {
			t.Errorf("Data = %q, want %q", ev.Data, chunk)
		}
		if ev.Truncated {
			t.Error("small chunk should not be truncated")
		}

		// Captured data must not alias the read buffer.
		chunk[0] = 'X'
		if ev.Data[0] == 'X' {
			t.Error("Data aliases the chunk")
		}
	})

	t.Run("Large", func(t *testing.T) {
		chunk := bytes.Repeat([]byte("x"), MaxChunkCapture+10)
		ev := NewChunkEvent(chunk, 0)

		if ev.Size != MaxChunkCapture+10 {
			t.Errorf("Size = %d, want %d", ev.Size, MaxChunkCapture+10)
		}
		if len(ev.Data) != MaxChunkCapture {
			t.Errorf("len(Data) = %d, want %d", len(ev.Data), MaxChunkCapture)
		}
		if !ev.Truncated {
			t.Error("large chunk should be truncated")
		}
	})
}
