package constants

import "strings"

// CaseType distinguishes the two orchestration strategies.
type CaseType string

const (
	CaseTypeIndividual CaseType = "INDIVIDUAL"
	CaseTypeCollective CaseType = "COLECTIVO"
)

// NormalizeCaseType trims and upper-cases a stored case type. The second
// return is false for anything other than the two known strategies.
func NormalizeCaseType(input string) (CaseType, bool) {
	ct := CaseType(strings.ToUpper(strings.TrimSpace(input)))
	switch ct {
	case CaseTypeIndividual, CaseTypeCollective:
		return ct, true
	}
	return ct, false
}

// CaseStatus is the canonical status for rows in ms_estados_casos.
type CaseStatus string

// Stable values (store these exact strings in DB).
const (
	CaseStatusPending         CaseStatus = "PENDIENTE"
	CaseStatusRisksIdentified CaseStatus = "RIESGOS IDENTIFICADOS"
)
