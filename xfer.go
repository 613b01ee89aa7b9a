package compute

// TransferOption adjusts one read, write or fill submission.
type TransferOption func(*xferConfig)

// xferConfig holds the per-call transfer settings. The zero value
// transfers len(data) bytes at offset 0 with no dependencies.
type xferConfig struct {
	offset     int
	length     int
	whole      bool
	invalidate bool
	deps       []*Event
}

// At sets the byte offset into the device allocation.
func At(offset int) TransferOption {
	return func(c *xferConfig) { c.offset = offset }
}

// Len overrides the transfer length in bytes. Without it the length of
// the host slice is used.
func Len(n int) TransferOption {
	return func(c *xferConfig) { c.length = n }
}

// Whole transfers the entire allocation, ignoring any offset.
func Whole() TransferOption {
	return func(c *xferConfig) { c.whole = true }
}

// Invalidate discards the prior contents of the written region instead
// of preserving unwritten bytes, trading data retention for reduced
// synchronization cost. Write only; a read with Invalidate fails with
// ErrInvalidArg.
func Invalidate() TransferOption {
	return func(c *xferConfig) { c.invalidate = true }
}

// After defers the submission until every listed Event has completed.
// Already-complete Events contribute nothing. Ordering among the
// dependencies themselves is not guaranteed, only that all complete
// before this submission starts.
func After(deps ...*Event) TransferOption {
	return func(c *xferConfig) { c.deps = append(c.deps, deps...) }
}

func applyXfer(opts []TransferOption) xferConfig {
	var c xferConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
