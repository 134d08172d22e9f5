package ui

import "github.com/hollowgate/launcherd/internal/domain"

// Nop is a HostUI that discards everything. Used headless and in tests.
type Nop struct{}

func (Nop) Minimize() {}

func (Nop) Restore() {}

func (Nop) Emit(event string, _ any) {}

// Ensure Nop implements domain.HostUI.
var _ domain.HostUI = Nop{}
