//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chatline/domain/event"
	"context"
	"reflect"
)

// EventSink is one live connection seen from the relay side. Push is
// non-blocking: it reports false when the connection is gone or its
// buffer is full, and the caller decides whether that matters.
type EventSink interface {
	Push(e event.Outbound) bool
	Alive() bool
}

// BindOutcome is the result of a session bind attempt.
type BindOutcome int

const (
	Connected BindOutcome = iota
	// Rejected means another live session holds the key. The new
	// connection stays unauthenticated.
	Rejected
	// Unauthenticated means the identity lookup failed or found no
	// account. The connection stays unbound.
	Unauthenticated
)

// ISessionDirectory maps live phone numbers to their single active
// connection. It is the only holder of cross-connection state.
type ISessionDirectory interface {
	Bind(ctx context.Context, key string, conn EventSink) BindOutcome
	Unbind(conn EventSink)
	Resolve(conn EventSink) (string, bool)
	DeliverTo(key string, e event.Outbound) bool
	BroadcastExcept(source EventSink, e event.Outbound)
	BroadcastAll(e event.Outbound)
	Count() int
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself. Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
