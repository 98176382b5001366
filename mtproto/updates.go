package mtproto

import (
	"sort"
	"sync"
)

// Update is one server-pushed object whose tag the dispatcher does not
// handle itself. The sender never deserializes updates and consults no
// TL catalog: every such tag becomes an Update, none is dropped as
// unknown, and only the raw tag and body are carried to whoever
// registered a handler.
type Update struct {
	Tag  uint32
	Body []byte
}

// UpdateHandler is invoked for every pushed Update, in registration
// order.
type UpdateHandler func(Update)

// UpdateHandlerToken identifies a registered handler for later removal.
// Go closures aren't comparable the way Python's bound methods are, so
// AddUpdateHandler hands back a token instead of expecting the caller
// to pass the function value again.
type UpdateHandlerToken int

// updateRegistry tracks the set of registered update callbacks.
type updateRegistry struct {
	mu       sync.Mutex
	next     UpdateHandlerToken
	handlers map[UpdateHandlerToken]UpdateHandler
}

func newUpdateRegistry() *updateRegistry {
	return &updateRegistry{handlers: make(map[UpdateHandlerToken]UpdateHandler)}
}

func (u *updateRegistry) add(h UpdateHandler) UpdateHandlerToken {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.next++
	token := u.next
	u.handlers[token] = h
	return token
}

func (u *updateRegistry) remove(token UpdateHandlerToken) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.handlers, token)
}

func (u *updateRegistry) hasHandlers() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.handlers) > 0
}

func (u *updateRegistry) dispatch(up Update) {
	u.mu.Lock()
	tokens := make([]UpdateHandlerToken, 0, len(u.handlers))
	for token := range u.handlers {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	snapshot := make([]UpdateHandler, 0, len(tokens))
	for _, token := range tokens {
		snapshot = append(snapshot, u.handlers[token])
	}
	u.mu.Unlock()

	for _, h := range snapshot {
		h(up)
	}
}
