package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chazu/slotvm/vm"
	"github.com/chazu/slotvm/vm/codec"
	"github.com/chazu/slotvm/vm/opcode"
)

func constCode(name string, v vm.Value) *vm.Code {
	var code []uint16
	code = opcode.Emit(code, opcode.LoadConst, 0)
	code = opcode.Emit(code, opcode.ReturnValue, 0)
	return &vm.Code{
		Name:         name,
		StackSize:    1,
		Consts:       []vm.Value{v},
		Instructions: code,
	}
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "code.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	c := constCode("answer", 42)

	h, err := s.Put(c)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, err := s.Has(h); err != nil || !ok {
		t.Errorf("Has = %v, %v", ok, err)
	}

	got, err := s.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "answer" || got.Consts[0] != 42 {
		t.Errorf("got %s %v", got.Name, got.Consts)
	}

	// Putting an equal code object again is a no-op.
	h2, err := s.Put(constCode("answer", 42))
	if err != nil || h2 != h {
		t.Errorf("second Put = %s, %v", h2, err)
	}
	if n, _ := s.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}

	if _, err := s.Put(constCode("other", 43)); err != nil {
		t.Fatal(err)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name != "answer" || entries[1].Name != "other" {
		t.Errorf("List = %+v", entries)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)
	var h Hash
	if _, err := s.Get(h); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if ok, err := s.Has(h); err != nil || ok {
		t.Errorf("Has = %v, %v", ok, err)
	}
}

func TestHashString(t *testing.T) {
	h, _, err := HashOf(constCode("x", 1))
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseHash(h.String())
	if err != nil || back != h {
		t.Errorf("ParseHash(String()) = %s, %v", back, err)
	}
	if _, err := ParseHash("abcd"); err == nil {
		t.Error("expected error for a short hash")
	}
	if _, err := ParseHash("zz"); err == nil {
		t.Error("expected error for non-hex input")
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	h, err := s.Put(constCode("kept", "value"))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(h)
	if err != nil || got.Consts[0] != "value" {
		t.Errorf("after reopen: %v, %v", got, err)
	}
}

func TestLoad(t *testing.T) {
	s := openTemp(t)
	dir := t.TempDir()

	data, err := codec.Marshal(constCode("wire", 7))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "wire.cbor")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	c, h, err := s.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Name != "wire" {
		t.Errorf("name = %s", c.Name)
	}
	if ok, _ := s.Has(h); !ok {
		t.Error("loaded code object was not cached")
	}
	if _, h2, err := s.Load(path); err != nil || h2 != h {
		t.Errorf("second Load = %s, %v", h2, err)
	}

	listing := filepath.Join(dir, "prog.yaml")
	src := "name: prog\nconsts: [1]\ninstructions: [LOAD_CONST 0, RETURN_VALUE]\n"
	if err := os.WriteFile(listing, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Load(listing); err != nil {
		t.Fatalf("Load listing: %v", err)
	}
	if n, _ := s.Len(); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
}

func TestConcurrentPut(t *testing.T) {
	s := openTemp(t)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Put(constCode("c", i%4)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if n, _ := s.Len(); n != 4 {
		t.Errorf("Len = %d, want 4", n)
	}
}
