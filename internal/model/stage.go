package model

import "strings"

// Stage is the client-side phase of an in-progress delivery. It is derived
// from the backend status plus the return-leg flag, never stored.
type Stage string

const (
	StageCollect  Stage = "coletar"
	StageDeliver  Stage = "entregar"
	StageReturn   Stage = "retornar"
	StageFinalize Stage = "finalizar"
)

// Backend status vocabulary after normalization.
const (
	StatusNovo       = "novo"
	StatusIniciado   = "iniciado"
	StatusColetando  = "coletando"
	StatusEntregando = "entregando"
	StatusRetornando = "retornando"
	StatusFinalizado = "finalizado"
	StatusCancelado  = "cancelado"
)

// NormalizeStatus lowercases a backend status and folds the "new/pending"
// family into "novo". Unknown statuses pass through lowercased.
func NormalizeStatus(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	switch t {
	case "", "await", "waiting", "pendente":
		return StatusNovo
	}
	return t
}

// IsTerminalStatus reports statuses that end local tracking. A reverted
// "novo" also ends tracking (reassigned away), but is kept distinct because
// it is not a completion.
func IsTerminalStatus(s string) bool {
	n := NormalizeStatus(s)
	return n == StatusFinalizado || n == StatusCancelado
}

// StatusToStage maps an authoritative backend status to the action stage.
// Terminal statuses never reach here during reconciliation; callers drop
// the delivery instead.
func StatusToStage(status string, hasReturn bool) Stage {
	switch NormalizeStatus(status) {
	case StatusColetando:
		return StageDeliver
	case StatusEntregando:
		if hasReturn {
			return StageReturn
		}
		return StageFinalize
	case StatusRetornando:
		return StageFinalize
	}
	// "novo", "iniciado" and anything unknown
	return StageCollect
}

// NextStage is the exhaustive transition function for a successful hold
// confirmation.
func NextStage(s Stage, hasReturn bool) Stage {
	switch s {
	case StageCollect:
		return StageDeliver
	case StageDeliver:
		if hasReturn {
			return StageReturn
		}
		return StageFinalize
	case StageReturn:
		return StageFinalize
	}
	return StageFinalize
}

// StatusForStage is the status written to the backend when the hold gesture
// confirms the given stage. Finalize goes through its own endpoint and has
// no status write.
func StatusForStage(s Stage) string {
	switch s {
	case StageCollect:
		return "Coletando"
	case StageDeliver:
		return "Entregando"
	case StageReturn:
		return "Retornando"
	}
	return ""
}

// Label is the operator-facing button label for a stage.
func Label(s Stage) string {
	switch s {
	case StageCollect:
		return "Coletar"
	case StageDeliver:
		return "Entregar"
	case StageReturn:
		return "Retornar"
	}
	return "Finalizar entrega"
}
