// File: provider/provider.go
package provider

// Provider is the abstract completion engine implemented by the RIO,
// io_uring, and epoll/kqueue readiness variants. No runtime downcasting
// is required — callers speak only this interface.
type Provider interface {
	// Initialize allocates kernel objects. Returns AlreadyInitialized if
	// called twice without an intervening Shutdown, PlatformNotSupported
	// if the kernel lacks the required API.
	Initialize(queueDepth, maxConcurrent int) error

	// Shutdown is idempotent: it transitions to shutting-down, drains or
	// cancels pending operations, deregisters all buffers, and returns
	// to uninitialized.
	Shutdown() error

	// RegisterBuffer returns an id valid until UnregisterBuffer or
	// Shutdown. A provider that needs no registration (readiness-based)
	// returns -1 as a successful no-op.
	RegisterBuffer(ptr []byte, size int) (int64, error)

	// UnregisterBuffer must not be called while any pending operation
	// cites id; doing so is reported as InvalidParameter.
	UnregisterBuffer(id int64) error

	// SendAsync submits a send for socket. buffer must remain valid
	// until the corresponding completion is drained.
	SendAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error

	// RecvAsync submits a recv for socket. The caller owns buffer; the
	// provider borrows it until completion.
	RecvAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error

	// FlushRequests commits any deferred/batched submissions. A no-op
	// where not needed.
	FlushRequests() error

	// ProcessCompletions blocks up to timeoutMs (negative = infinite,
	// zero = non-blocking), drains up to len(entries) completions, and
	// returns the count. Returns a negative count carrying an error code
	// on failure.
	ProcessCompletions(entries []CompletionEntry, timeoutMs int) (int, error)

	// Info returns the static provider descriptor.
	Info() Info

	// Stats returns a snapshot of cumulative counters.
	Stats() Stats
}
