package hal

// Context is a saved execution context: a goroutine that only runs while it
// holds the machine baton, plus the status register it was switched out with.
//
// The zero value is not runnable; use Machine.InitContext.
type Context struct {
	_ [0]func() // not comparable

	resume  chan struct{}
	entry   func()
	started bool
	psr     uint32
	stack   int
}

// StackSize returns the stack size the context was initialised with.
func (c *Context) StackSize() int { return c.stack }

// Initialized reports whether the context can be switched to.
func (c *Context) Initialized() bool { return c.resume != nil }

func (c *Context) init(stackSize int, entry func()) {
	c.resume = make(chan struct{})
	c.entry = entry
	c.started = false
	c.psr = PSRKernel
	c.stack = stackSize
}

// park blocks the calling goroutine forever. Discarded contexts end here.
func park() {
	select {}
}
