package dispatch

import (
	"strings"

	"channel-assistant/internal/domain"
)

// Predicate decides whether a route applies to an event in the given state.
type Predicate func(ev domain.Event, state domain.State) bool

// Command matches "/name", with or without arguments.
func Command(name string) Predicate {
	return func(ev domain.Event, _ domain.State) bool {
		return ev.Kind == domain.EventCommand && ev.Command == name
	}
}

// Button matches a reply-keyboard press, which arrives as its exact label.
func Button(label string) Predicate {
	return func(ev domain.Event, _ domain.State) bool {
		return ev.Kind == domain.EventText && strings.TrimSpace(ev.Text) == label
	}
}

// InState matches any event while the session is in state.
func InState(state domain.State) Predicate {
	return func(_ domain.Event, current domain.State) bool {
		return current == state
	}
}

// InStatePrefix matches every state of a flow, e.g. "genpost.".
func InStatePrefix(prefix string) Predicate {
	return func(_ domain.Event, current domain.State) bool {
		return current != domain.StateIdle && strings.HasPrefix(string(current), prefix)
	}
}

// Callback matches inline callback data exactly.
func Callback(data string) Predicate {
	return func(ev domain.Event, _ domain.State) bool {
		return ev.Kind == domain.EventCallback && ev.CallbackData == data
	}
}

// CallbackPrefix matches namespaced callback data such as "delete_confirm:".
func CallbackPrefix(prefix string) Predicate {
	return func(ev domain.Event, _ domain.State) bool {
		return ev.Kind == domain.EventCallback && strings.HasPrefix(ev.CallbackData, prefix)
	}
}

// Kind matches events of one kind.
func Kind(kind domain.EventKind) Predicate {
	return func(ev domain.Event, _ domain.State) bool {
		return ev.Kind == kind
	}
}

// All matches when every predicate matches.
func All(preds ...Predicate) Predicate {
	return func(ev domain.Event, state domain.State) bool {
		for _, p := range preds {
			if !p(ev, state) {
				return false
			}
		}
		return true
	}
}

// AnyOf matches when at least one predicate matches.
func AnyOf(preds ...Predicate) Predicate {
	return func(ev domain.Event, state domain.State) bool {
		for _, p := range preds {
			if p(ev, state) {
				return true
			}
		}
		return false
	}
}
