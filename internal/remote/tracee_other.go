//go:build !(linux && arm)

package remote

// NewTracee returns a backend whose operations all fail with ErrUnsupported.
func NewTracee() Tracee {
	return unsupported{}
}

type unsupported struct{}

func (unsupported) Attach(int) error                 { return ErrUnsupported }
func (unsupported) Detach() error                    { return ErrUnsupported }
func (unsupported) GetRegs() (Registers, error)      { return Registers{}, ErrUnsupported }
func (unsupported) SetRegs(Registers) error          { return ErrUnsupported }
func (unsupported) PeekWord(uintptr) (uint32, error) { return 0, ErrUnsupported }
func (unsupported) PokeWord(uintptr, uint32) error   { return ErrUnsupported }
func (unsupported) Cont(int) error                   { return ErrUnsupported }
func (unsupported) Wait() (Stop, error)              { return Stop{}, ErrUnsupported }
