package remote

import (
	"bytes"
	"testing"

	"github.com/k2io/armhook/internal/armabi"
	"github.com/pkg/errors"
)

// fakeTracee runs remote calls through run, with word addressed memory.
type fakeTracee struct {
	regs     Registers
	mem      map[uintptr]uint32
	attached bool
	conts    []int
	// run simulates the tracee between Cont and Wait
	run func(f *fakeTracee) Stop
	// fail makes SetRegs fail after this many calls, when positive
	failSetAfter int
	sets         int
}

func newFake() *fakeTracee {
	f := &fakeTracee{mem: make(map[uintptr]uint32)}
	f.regs[RegSP] = 0x7ff000
	f.regs[RegLR] = 0x4001
	f.regs[RegPC] = 0x4100
	f.regs[RegCPSR] = 0x10
	f.regs[4] = 0x44
	return f
}

func (f *fakeTracee) Attach(int) error { f.attached = true; return nil }
func (f *fakeTracee) Detach() error    { f.attached = false; return nil }

func (f *fakeTracee) GetRegs() (Registers, error) { return f.regs, nil }

func (f *fakeTracee) SetRegs(r Registers) error {
	f.sets++
	if f.failSetAfter > 0 && f.sets > f.failSetAfter {
		return errors.New("setregs refused")
	}
	f.regs = r
	return nil
}

func (f *fakeTracee) PeekWord(addr uintptr) (uint32, error) {
	if addr%4 != 0 {
		return 0, errors.Errorf("unaligned peek %#x", addr)
	}
	return f.mem[addr], nil
}

func (f *fakeTracee) PokeWord(addr uintptr, w uint32) error {
	if addr%4 != 0 {
		return errors.Errorf("unaligned poke %#x", addr)
	}
	f.mem[addr] = w
	return nil
}

func (f *fakeTracee) Cont(sig int) error {
	f.conts = append(f.conts, sig)
	return nil
}

func (f *fakeTracee) Wait() (Stop, error) {
	if f.run == nil {
		return Stop{Signal: 11}, nil
	}
	return f.run(f), nil
}

// returns simulates a callee returning v to the zero link register.
func returns(v uint32) func(f *fakeTracee) Stop {
	return func(f *fakeTracee) Stop {
		f.regs[0] = v
		f.regs[RegPC] = f.regs[RegLR]
		return Stop{Signal: 11}
	}
}

func attached(t *testing.T, f *fakeTracee) *Session {
	t.Helper()
	s := NewSession(42, f)
	if err := s.Attach(); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return s
}

func TestMarshalCall(t *testing.T) {
	var regs Registers
	regs[RegSP] = 0x1000
	regs[RegLR] = 0x2001
	regs[RegCPSR] = 0x10 | armabi.CPSRThumb
	regs[5] = 0x55

	tests := []struct {
		name      string
		fn        armabi.Addr
		args      []uint32
		wantSP    uint32
		wantStack []uint32
		wantThumb bool
	}{
		{"no args arm", armabi.Addr{Value: 0x8000}, nil, 0x1000, nil, false},
		{"four args thumb", armabi.ThumbAddr(0x8000), []uint32{1, 2, 3, 4}, 0x1000, nil, true},
		{"six args", armabi.Addr{Value: 0x8000}, []uint32{1, 2, 3, 4, 5, 6}, 0x1000 - 8, []uint32{5, 6}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := MarshalCall(regs, tt.fn, tt.args)
			for i := 0; i < len(tt.args) && i < 4; i++ {
				if frame.Regs[i] != tt.args[i] {
					t.Errorf("r%d = %#x, want %#x", i, frame.Regs[i], tt.args[i])
				}
			}
			if frame.Regs.SP() != tt.wantSP || frame.StackAddr != uintptr(tt.wantSP) {
				t.Errorf("sp = %#x stack at %#x, want %#x", frame.Regs.SP(), frame.StackAddr, tt.wantSP)
			}
			if len(frame.Stack) != len(tt.wantStack) {
				t.Fatalf("stack = %v, want %v", frame.Stack, tt.wantStack)
			}
			for i := range tt.wantStack {
				if frame.Stack[i] != tt.wantStack[i] {
					t.Errorf("stack[%d] = %d, want %d", i, frame.Stack[i], tt.wantStack[i])
				}
			}
			if frame.Regs.LR() != 0 || frame.Regs.PC() != 0x8000 {
				t.Errorf("lr = %#x pc = %#x", frame.Regs.LR(), frame.Regs.PC())
			}
			if frame.Regs.Thumb() != tt.wantThumb {
				t.Errorf("thumb = %v, want %v", frame.Regs.Thumb(), tt.wantThumb)
			}
			if frame.Regs[5] != 0x55 || frame.Regs.CPSR()&0x10 == 0 {
				t.Errorf("unrelated registers changed: %v", frame.Regs)
			}
		})
	}
}

func TestCallRestoresRegisters(t *testing.T) {
	f := newFake()
	f.run = returns(0xb000)
	before := f.regs
	s := attached(t, f)

	ret, err := s.Call(armabi.ThumbAddr(0x9000), 1, 2, 3, 4, 5, 6)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ret != 0xb000 {
		t.Errorf("ret = %#x, want 0xb000", ret)
	}
	if f.regs != before {
		t.Errorf("registers after call\n got %v\nwant %v", f.regs, before)
	}
	sp := uintptr(before[RegSP])
	if f.mem[sp-8] != 5 || f.mem[sp-4] != 6 {
		t.Errorf("stack args = %d %d, want 5 6", f.mem[sp-8], f.mem[sp-4])
	}
}

func TestCallPassesForeignSignals(t *testing.T) {
	f := newFake()
	calls := 0
	f.run = func(f *fakeTracee) Stop {
		calls++
		if calls == 1 {
			// SIGCHLD before the callee returns
			return Stop{Signal: 17}
		}
		return returns(7)(f)
	}
	s := attached(t, f)

	ret, err := s.Call(armabi.Addr{Value: 0x9000})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if ret != 7 {
		t.Errorf("ret = %d, want 7", ret)
	}
	if len(f.conts) != 2 || f.conts[0] != 0 || f.conts[1] != 17 {
		t.Errorf("continued with %v, want [0 17]", f.conts)
	}
}

func TestCallExited(t *testing.T) {
	f := newFake()
	f.run = func(*fakeTracee) Stop { return Stop{Exited: true, Signal: 11} }
	s := attached(t, f)

	if _, err := s.Call(armabi.Addr{Value: 0x9000}); !errors.Is(err, ErrExited) {
		t.Fatalf("error = %v, want ErrExited", err)
	}
	if err := s.Detach(); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Detach after exit error = %v, want ErrNotAttached", err)
	}
}

func TestCallRestoreFailure(t *testing.T) {
	f := newFake()
	f.run = returns(1)
	f.failSetAfter = 1
	s := attached(t, f)

	if _, err := s.Call(armabi.Addr{Value: 0x9000}); err == nil {
		t.Error("Call succeeded although registers could not be restored")
	}
}

func TestNotAttached(t *testing.T) {
	s := NewSession(42, newFake())
	if _, err := s.Call(armabi.Addr{Value: 0x9000}); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Call error = %v", err)
	}
	if err := s.WriteMemory(0x1000, []byte{1}); !errors.Is(err, ErrNotAttached) {
		t.Errorf("WriteMemory error = %v", err)
	}
	if err := s.Detach(); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Detach error = %v", err)
	}
	if err := s.Attach(); err != nil {
		t.Fatal(err)
	}
	if err := s.Attach(); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("second Attach error = %v", err)
	}
}

func TestWriteMemoryPartialWord(t *testing.T) {
	f := newFake()
	f.mem[0x2000] = 0x11111111
	f.mem[0x2004] = 0xaabbccdd
	s := attached(t, f)

	if err := s.WriteMemory(0x2000, []byte("/data/x")); err != nil {
		t.Fatalf("WriteMemory: %v", err)
	}
	// "/dat"
	if want := uint32(0x7461642f); f.mem[0x2000] != want {
		t.Errorf("word 0 = %#x, want %#x", f.mem[0x2000], want)
	}
	// "a/x" then the preserved top byte
	if want := uint32(0xaa782f61); f.mem[0x2004] != want {
		t.Errorf("word 1 = %#x, want %#x", f.mem[0x2004], want)
	}
	if _, ok := f.mem[0x2008]; ok {
		t.Error("wrote past the end of data")
	}
}

func TestReadMemoryAndString(t *testing.T) {
	f := newFake()
	s := attached(t, f)
	msg := []byte("dlopen failed: nope\x00")
	if err := s.WriteMemory(0x3000, msg); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadMemory(0x3000, 6)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	if !bytes.Equal(got, msg[:6]) {
		t.Errorf("ReadMemory = %q", got)
	}

	str, err := s.ReadString(0x3000, 256)
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if str != "dlopen failed: nope" {
		t.Errorf("ReadString = %q", str)
	}
	if str, _ := s.ReadString(0x3000, 6); str != "dlopen" {
		t.Errorf("bounded ReadString = %q", str)
	}
	if s.PID() != 42 {
		t.Errorf("PID = %d, want 42", s.PID())
	}
}
