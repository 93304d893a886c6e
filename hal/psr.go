package hal

// Processor status register bits.
const (
	PSRKernel uint32 = 1 << iota
	PSRInterrupts
	PSRPrevKernel
	PSRPrevInterrupts

	psrMask = PSRKernel | PSRInterrupts | PSRPrevKernel | PSRPrevInterrupts
)

// ValidPSR reports whether psr only sets defined bits.
func ValidPSR(psr uint32) bool {
	return psr&^psrMask == 0
}

// interruptPSR is the status a handler runs with: kernel mode, interrupts
// off, the interrupted mode kept in the "previous" bits.
func interruptPSR(cur uint32) uint32 {
	return PSRKernel | (cur&(PSRKernel|PSRInterrupts))<<2
}
