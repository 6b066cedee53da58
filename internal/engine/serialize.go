package engine

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inferloop/anonymizer/internal/lattice"
	"github.com/inferloop/anonymizer/pkg/errors"
)

// The persisted-state format is a sequence of tab-separated records, one per
// checked node: the transformation tuple (comma-separated levels), the
// verdict, and the recorded loss.

const (
	verdictAnonymous    = "anonymous"
	verdictNotAnonymous = "not_anonymous"
)

// WriteLattice serializes every checked node of the solution space.
func WriteLattice(w io.Writer, space *lattice.SolutionSpace) error {
	bw := bufio.NewWriter(w)
	for _, id := range space.MaterializedTransformations() {
		if !space.HasProperty(id, lattice.PropertyChecked) {
			continue
		}
		verdict := verdictNotAnonymous
		if space.HasProperty(id, lattice.PropertyAnonymous) {
			verdict = verdictAnonymous
		}
		loss, _ := space.Loss(id)
		levels := space.Levels(id)
		parts := make([]string, len(levels))
		for d, l := range levels {
			parts[d] = strconv.Itoa(l)
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n",
			strings.Join(parts, ","), verdict,
			strconv.FormatFloat(loss, 'g', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadLattice replays previously computed records onto a freshly built
// solution space: each matching node receives its checked flag, verdict and
// loss.
func ReadLattice(r io.Reader, space *lattice.SolutionSpace) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 3 {
			return errors.NewDataError("LATTICE_RECORD",
				fmt.Sprintf("line %d: expected 3 fields, got %d", line, len(fields)))
		}
		parts := strings.Split(fields[0], ",")
		if len(parts) != space.Dimensions() {
			return errors.NewDataError("LATTICE_RECORD",
				fmt.Sprintf("line %d: expected %d levels, got %d", line, space.Dimensions(), len(parts)))
		}
		levels := make([]int, len(parts))
		for d, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return errors.WrapError(err, errors.ErrorTypeData, "LATTICE_RECORD",
					fmt.Sprintf("line %d: bad level", line))
			}
			levels[d] = v
		}
		loss, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeData, "LATTICE_RECORD",
				fmt.Sprintf("line %d: bad loss", line))
		}

		id := space.ID(levels)
		space.PutProperty(id, lattice.PropertyChecked)
		switch fields[1] {
		case verdictAnonymous:
			space.PutProperty(id, lattice.PropertyAnonymous)
		case verdictNotAnonymous:
			space.PutProperty(id, lattice.PropertyNotAnonymous)
		default:
			return errors.NewDataError("LATTICE_RECORD",
				fmt.Sprintf("line %d: unknown verdict '%s'", line, fields[1]))
		}
		space.SetLoss(id, loss, loss)
	}
	return scanner.Err()
}
