//go:build !linux

// Package iouring on non-Linux platforms exposes a stub Provider that
// always reports PlatformNotSupported, so callers can reference
// iouring.New() from platform-agnostic wiring code.
package iouring

import (
	"github.com/momentics/hioload-ioprovider/ioerr"
	"github.com/momentics/hioload-ioprovider/provider"
)

type Provider struct {
	eng *provider.Engine
}

func New() *Provider {
	return &Provider{eng: provider.NewEngine(provider.Info{Platform: "other", Name: "io_uring (unsupported)"})}
}

func (p *Provider) Initialize(queueDepth, maxConcurrent int) error {
	return ioerr.New("Initialize", ioerr.CodePlatformNotSupported, "io_uring is only available on linux")
}
func (p *Provider) Shutdown() error { return nil }
func (p *Provider) RegisterBuffer(ptr []byte, size int) (int64, error) {
	return -1, ioerr.New("RegisterBuffer", ioerr.CodePlatformNotSupported, "io_uring is only available on linux")
}
func (p *Provider) UnregisterBuffer(id int64) error {
	return ioerr.New("UnregisterBuffer", ioerr.CodePlatformNotSupported, "io_uring is only available on linux")
}
func (p *Provider) SendAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error {
	return ioerr.New("SendAsync", ioerr.CodePlatformNotSupported, "io_uring is only available on linux")
}
func (p *Provider) RecvAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error {
	return ioerr.New("RecvAsync", ioerr.CodePlatformNotSupported, "io_uring is only available on linux")
}
func (p *Provider) FlushRequests() error {
	return ioerr.New("FlushRequests", ioerr.CodePlatformNotSupported, "io_uring is only available on linux")
}
func (p *Provider) ProcessCompletions(entries []provider.CompletionEntry, timeoutMs int) (int, error) {
	return -1, ioerr.New("ProcessCompletions", ioerr.CodePlatformNotSupported, "io_uring is only available on linux")
}
func (p *Provider) Info() provider.Info   { return p.eng.Info() }
func (p *Provider) Stats() provider.Stats { return p.eng.Stats() }

var _ provider.Provider = (*Provider)(nil)
