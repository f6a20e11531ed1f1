package relay

import (
	"context"
	"sync"
)

// Token is the cancellation signal of one exchange. It latches: once raised
// it stays raised, and every pending send must observe it before touching
// the connection.
type Token struct {
	once sync.Once
	ch   chan struct{}
}

func NewToken() *Token {
	return &Token{ch: make(chan struct{})}
}

// Raise latches the token. Safe to call more than once.
func (t *Token) Raise() {
	t.once.Do(func() { close(t.ch) })
}

// Raised reports whether the token has been raised.
func (t *Token) Raised() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is raised.
func (t *Token) Done() <-chan struct{} {
	return t.ch
}

// Bind derives a context cancelled when either the parent ends or the token
// is raised. The caller must call the returned cancel func.
func (t *Token) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
