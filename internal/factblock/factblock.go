// Package factblock parses and formats the field-tagged disease fact blocks
// produced by the knowledge graph.
//
// A block looks like:
//
//	疾病名称：肺炎
//
//	疾病病因：细菌或病毒感染
//
//	治疗科室：呼吸内科
//
//	并发症：胸膜炎 脓胸
//
// Lines that do not start with a known label continue the most recently
// opened field.
package factblock

import (
	"log"
	"strings"
)

// Field labels. The colon is the full-width U+FF1A.
const (
	LabelDiseaseName   = "疾病名称："
	LabelCause         = "疾病病因："
	LabelDepartment    = "治疗科室："
	LabelComplications = "并发症："
)

// Record holds the typed fields of one fact block.
type Record struct {
	DiseaseName   string
	Cause         string
	Department    string
	Complications string
}

type field int

const (
	fieldNone field = iota
	fieldCause
	fieldDepartment
	fieldComplications
)

func (r *Record) slot(f field) *string {
	switch f {
	case fieldCause:
		return &r.Cause
	case fieldDepartment:
		return &r.Department
	case fieldComplications:
		return &r.Complications
	}
	return nil
}

// Parse converts a fact block into a Record. It never fails: anything it
// cannot classify is ignored and a partially filled record is returned.
func Parse(text string) (rec Record) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("factblock: parse failed, returning partial record: %v", r)
		}
	}()

	current := fieldNone
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, LabelDiseaseName):
			// The name is not continuable, so the open field stays as is.
			rec.DiseaseName = remainder(line, LabelDiseaseName)
		case strings.HasPrefix(line, LabelCause):
			current = fieldCause
			rec.Cause = remainder(line, LabelCause)
		case strings.HasPrefix(line, LabelDepartment):
			current = fieldDepartment
			rec.Department = remainder(line, LabelDepartment)
		case strings.HasPrefix(line, LabelComplications):
			current = fieldComplications
			rec.Complications = remainder(line, LabelComplications)
		default:
			if p := rec.slot(current); p != nil {
				*p += line
			}
		}
	}
	return rec
}

func remainder(line, label string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, label))
}

// Enrichable reports whether the record carries a causal explanation.
// Records without one are dropped rather than defaulted.
func (r Record) Enrichable() bool {
	return r.Cause != ""
}

// Format renders the record back into a block: name, cause, department,
// complications in that order, blank-line separated. Empty fields other
// than the name are omitted.
func Format(r Record) string {
	var sb strings.Builder
	sb.WriteString(LabelDiseaseName + r.DiseaseName + "\n\n")
	if r.Cause != "" {
		sb.WriteString(LabelCause + r.Cause + "\n\n")
	}
	if r.Department != "" {
		sb.WriteString(LabelDepartment + r.Department + "\n\n")
	}
	if r.Complications != "" {
		sb.WriteString(LabelComplications + r.Complications + "\n\n")
	}
	return strings.TrimSpace(sb.String())
}
