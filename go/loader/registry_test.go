package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/pkg/errors"

	"github.com/timeros/appload/go/models"
)

func packTable(t testing.TB, names []string, addrs []uint64) []byte {
	table, err := PackTable(names, addrs)
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestRegistryLookup(t *testing.T) {
	table := packTable(t, []string{"a", "b", "c"}, []uint64{0, 100, 250, 300})
	r, err := NewRegistry(table, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", r.Count())
	}
	b, err := r.ByID(1)
	if err != nil {
		t.Fatal(err)
	}
	if want := (models.AppMetadata{ID: 1, Start: 100, Size: 150}); b != want {
		t.Errorf("ByID(1) = %v, want %v", b, want)
	}
	byName, err := r.ByName("b")
	if err != nil {
		t.Fatal(err)
	}
	if byName != b {
		t.Errorf("ByName(b) = %v, want %v", byName, b)
	}
	if _, err := r.ByName("z"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByName(z) err = %v, want ErrNotFound", err)
	}
	for _, id := range []int{-1, 3, 100} {
		if _, err := r.ByID(id); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("ByID(%d) err = %v, want ErrOutOfRange", id, err)
		}
	}
	if got := r.Names(); fmt.Sprint(got) != "[a b c]" {
		t.Errorf("Names() = %v", got)
	}
}

func TestRegistryRangeInvariant(t *testing.T) {
	addrs := []uint64{0x1000, 0x1000, 0x1800, 0x1808, 0x4000}
	names := []string{"empty", "one", "two", "three"}
	r, err := NewRegistry(packTable(t, names, addrs), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	for id := 0; id < r.Count(); id++ {
		m, err := r.ByID(id)
		if err != nil {
			t.Fatal(err)
		}
		if m.ID != id || m.Start != addrs[id] || m.End() != addrs[id+1] {
			t.Errorf("app %d = %v", id, m)
		}
		name, _ := r.Name(id)
		if byName, err := r.ByName(name); err != nil || byName != m {
			t.Errorf("ByName(%q) = %v, %v", name, byName, err)
		}
	}
}

func TestRegistryDuplicateNames(t *testing.T) {
	r, err := NewRegistry(packTable(t, []string{"x", "y", "x"}, []uint64{0, 1, 2, 3}), nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	m, err := r.ByName("x")
	if err != nil || m.ID != 0 {
		t.Errorf("ByName(x) = %v, %v; want id 0", m, err)
	}
}

func TestRegistryCapacity(t *testing.T) {
	names := make([]string, models.MaxApps+1)
	addrs := make([]uint64, len(names)+1)
	for i := range names {
		names[i] = fmt.Sprintf("app%d", i)
		addrs[i+1] = uint64(i+1) * 8
	}
	table := packTable(t, names, addrs)
	if _, err := NewRegistry(table, nil, 0); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("err = %v, want ErrCapacityExceeded", err)
	}
	r, err := NewRegistry(table, nil, len(names))
	if err != nil {
		t.Fatal(err)
	}
	if r.Count() != len(names) {
		t.Errorf("Count() = %d", r.Count())
	}
}

func TestRegistryBadTable(t *testing.T) {
	good := packTable(t, []string{"a", "b"}, []uint64{0, 16, 32})
	decreasing := packTable(t, []string{"a", "b"}, []uint64{0, 16, 8})
	tests := []struct {
		name  string
		table []byte
	}{
		{"empty", nil},
		{"short count", good[:4]},
		{"truncated addresses", good[:8+2*8]},
		{"missing name", good[:8+3*8+2]},
		{"unterminated name", good[:len(good)-1]},
		{"decreasing addresses", decreasing},
	}
	for _, test := range tests {
		if _, err := NewRegistry(test.table, nil, 0); !errors.Is(err, ErrBadTable) {
			t.Errorf("%s: err = %v, want ErrBadTable", test.name, err)
		}
	}
}

func TestRegistryEmpty(t *testing.T) {
	var table [16]byte
	binary.LittleEndian.PutUint64(table[8:], 0x8000)
	r, err := NewRegistry(table[:], nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d", r.Count())
	}
	if _, err := r.ByID(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ByID(0) err = %v", err)
	}
}

func TestRegistryImage(t *testing.T) {
	apps := []App{
		{Name: "hello", Data: []byte("hello world")},
		{Name: "sh", Data: bytes.Repeat([]byte{0xaa}, 100)},
	}
	img, err := BuildImage(0x80400000, apps)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewImageRegistry(img, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, app := range apps {
		m, err := r.ByName(app.Name)
		if err != nil {
			t.Fatal(err)
		}
		if m.ID != i || m.Start%8 != 0 {
			t.Errorf("%s: %v", app.Name, m)
		}
		data, err := r.Image(m)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.HasPrefix(data, app.Data) || len(data)-len(app.Data) >= 8 {
			t.Errorf("%s: image %x", app.Name, data)
		}
	}
	if _, err := r.Image(models.AppMetadata{Start: img.End(), Size: 1}); err == nil {
		t.Error("read past end of image did not fail")
	}
}

func BenchmarkRegistryByName(b *testing.B) {
	names := make([]string, models.MaxApps)
	addrs := make([]uint64, len(names)+1)
	for i := range names {
		names[i] = fmt.Sprintf("app%d", i)
		addrs[i+1] = uint64(i+1) * 0x1000
	}
	r, err := NewRegistry(packTable(b, names, addrs), nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.ByName(names[i%len(names)]); err != nil {
			b.Fatal(err)
		}
	}
}
