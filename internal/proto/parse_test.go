package proto

import (
	"errors"
	"reflect"
	"testing"
)

// ============================================================
// NewParser Tests
// ============================================================

func TestNewParser_RequiresArray(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{"simple string", Simple("ping")},
		{"bulk", Bulk("ping")},
		{"integer", Integer(1)},
		{"null", Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(tt.frame)
			if !errors.Is(err, ErrProtocol) {
				t.Errorf("NewParser() error = %v, want ErrProtocol", err)
			}
		})
	}
}

// ============================================================
// Next* Tests
// ============================================================

func TestParser_NextString(t *testing.T) {
	p, err := NewParser(Array{Simple("get"), Bulk("key")})
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}

	for _, want := range []string{"get", "key"} {
		got, err := p.NextString()
		if err != nil {
			t.Fatalf("NextString() error = %v", err)
		}
		if got != want {
			t.Errorf("NextString() = %q, want %q", got, want)
		}
	}

	// The array is exhausted; only ErrEndOfStream is recoverable.
	if _, err := p.NextString(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("NextString() past end error = %v, want ErrEndOfStream", err)
	}
}

func TestParser_NextString_InvalidUTF8(t *testing.T) {
	p, err := NewParser(Array{Bulk("\xff\xfe")})
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	if _, err := p.NextString(); !errors.Is(err, ErrProtocol) {
		t.Errorf("NextString() error = %v, want ErrProtocol", err)
	}
}

func TestParser_NextBytes(t *testing.T) {
	p, err := NewParser(Array{Bulk{0xde, 0xad}, Simple("ok"), Integer(1)})
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}

	got, err := p.NextBytes()
	if err != nil {
		t.Fatalf("NextBytes() error = %v", err)
	}
	if !reflect.DeepEqual(got, []byte{0xde, 0xad}) {
		t.Errorf("NextBytes() = %v, want [de ad]", got)
	}

	if _, err := p.NextBytes(); err != nil {
		t.Fatalf("NextBytes() on simple string error = %v", err)
	}

	// An integer element is not bytes.
	if _, err := p.NextBytes(); !errors.Is(err, ErrProtocol) {
		t.Errorf("NextBytes() on integer error = %v, want ErrProtocol", err)
	}
}

func TestParser_NextInt(t *testing.T) {
	tests := []struct {
		name    string
		element Frame
		want    uint64
		wantErr error
	}{
		{"integer frame", Integer(42), 42, nil},
		{"decimal simple string", Simple("123"), 123, nil},
		{"decimal bulk", Bulk("7"), 7, nil},
		{"non-numeric", Bulk("abc"), 0, ErrProtocol},
		{"negative", Simple("-1"), 0, ErrProtocol},
		{"null element", Null{}, 0, ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParser(Array{tt.element})
			if err != nil {
				t.Fatalf("NewParser() error = %v", err)
			}
			got, err := p.NextInt()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NextInt() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextInt() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NextInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParser_NextList(t *testing.T) {
	p, err := NewParser(Array{Simple("rpush"), Simple("key"), Bulk("a"), Integer(2)})
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	// Skip the command name and key.
	if _, err := p.NextString(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.NextString(); err != nil {
		t.Fatal(err)
	}

	got, err := p.NextList()
	if err != nil {
		t.Fatalf("NextList() error = %v", err)
	}
	want := []Frame{Bulk("a"), Integer(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NextList() = %#v, want %#v", got, want)
	}

	// The list consumed the remainder.
	if _, err := p.NextList(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("NextList() past end error = %v, want ErrEndOfStream", err)
	}
}

func TestParser_NextList_RejectsNestedArray(t *testing.T) {
	p, err := NewParser(Array{Simple("key"), Array{Simple("nested")}})
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	if _, err := p.NextString(); err != nil {
		t.Fatal(err)
	}
	if _, err := p.NextList(); !errors.Is(err, ErrProtocol) {
		t.Errorf("NextList() error = %v, want ErrProtocol", err)
	}
}
