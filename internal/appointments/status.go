package appointments

import "fmt"

// Status is the closed set of appointment lifecycle states.
type Status string

const (
	StatusAgendado      Status = "agendado"
	StatusConfirmado    Status = "confirmado"
	StatusRealizado     Status = "realizado"
	StatusCancelado     Status = "cancelado"
	StatusNaoCompareceu Status = "nao_compareceu"
)

// transitions is the single source of truth for the lifecycle graph.
var transitions = map[Status][]Status{
	StatusAgendado:      {StatusConfirmado, StatusCancelado},
	StatusConfirmado:    {StatusRealizado, StatusCancelado, StatusNaoCompareceu},
	StatusRealizado:     {},
	StatusCancelado:     {},
	StatusNaoCompareceu: {},
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", fmt.Errorf("appointments: unknown status %q", raw)
	}
	return s, nil
}

// IsTerminal reports whether no transition leaves the state.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from→to is an edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
