//go:build !windows

// Package rio on non-Windows platforms exposes a stub Provider that
// always reports PlatformNotSupported, so callers can reference
// rio.New() from platform-agnostic wiring code.
package rio

import (
	"github.com/momentics/hioload-ioprovider/ioerr"
	"github.com/momentics/hioload-ioprovider/provider"
)

type Provider struct {
	eng *provider.Engine
}

func New() *Provider {
	return &Provider{eng: provider.NewEngine(provider.Info{Platform: "other", Name: "RIO (unsupported)"})}
}

func (p *Provider) Initialize(queueDepth, maxConcurrent int) error {
	return ioerr.New("Initialize", ioerr.CodePlatformNotSupported, "RIO is only available on windows")
}
func (p *Provider) Shutdown() error { return nil }
func (p *Provider) RegisterBuffer(ptr []byte, size int) (int64, error) {
	return -1, ioerr.New("RegisterBuffer", ioerr.CodePlatformNotSupported, "RIO is only available on windows")
}
func (p *Provider) UnregisterBuffer(id int64) error {
	return ioerr.New("UnregisterBuffer", ioerr.CodePlatformNotSupported, "RIO is only available on windows")
}
func (p *Provider) SendAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error {
	return ioerr.New("SendAsync", ioerr.CodePlatformNotSupported, "RIO is only available on windows")
}
func (p *Provider) RecvAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error {
	return ioerr.New("RecvAsync", ioerr.CodePlatformNotSupported, "RIO is only available on windows")
}
func (p *Provider) FlushRequests() error {
	return ioerr.New("FlushRequests", ioerr.CodePlatformNotSupported, "RIO is only available on windows")
}
func (p *Provider) ProcessCompletions(entries []provider.CompletionEntry, timeoutMs int) (int, error) {
	return -1, ioerr.New("ProcessCompletions", ioerr.CodePlatformNotSupported, "RIO is only available on windows")
}
func (p *Provider) Info() provider.Info   { return p.eng.Info() }
func (p *Provider) Stats() provider.Stats { return p.eng.Stats() }

var _ provider.Provider = (*Provider)(nil)
