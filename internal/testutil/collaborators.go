package testutil

import (
	"context"
	"sync"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// AllowAll grants every action.
var AllowAll = shared.AuthorizerFunc(func(context.Context, shared.Actor, shared.Action) (bool, error) {
	return true, nil
})

// Allow grants only the listed actions.
func Allow(actions ...shared.Action) shared.Authorizer {
	granted := make(map[shared.Action]bool, len(actions))
	for _, a := range actions {
		granted[a] = true
	}
	return shared.AuthorizerFunc(func(_ context.Context, _ shared.Actor, action shared.Action) (bool, error) {
		return granted[action], nil
	})
}

// Notifier records notifications and optionally fails.
type Notifier struct {
	mu   sync.Mutex
	Err  error
	Sent []shared.Notification
}

// Notify implements shared.Notifier.
func (n *Notifier) Notify(_ context.Context, msg shared.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, msg)
	return n.Err
}

// Audit records audit entries in memory.
type Audit struct {
	mu      sync.Mutex
	Entries []shared.AuditLog
}

// Record implements shared.AuditPort.
func (a *Audit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Entries = append(a.Entries, log)
	return nil
}

// Actions returns the recorded audit action names.
func (a *Audit) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.Entries))
	for _, e := range a.Entries {
		out = append(out, e.Action)
	}
	return out
}
