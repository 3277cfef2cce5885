package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"sfcplacement/placement/common"
)

var Header = []string{"demand", "ingress", "egress", "volume", "hop", "src", "dst", "layer", "placements"}

// WriteCSV writes a leading goal,objective record followed by the header and
// one row per traversed edge of every feasible demand, grouped by demand and
// egress in solution order. placements lists the chain of the route as
// TYPE@vertex separated by ';'.
func WriteCSV(w io.Writer, sol *common.Solution) error {
	cw := csv.NewWriter(w)
	summary := []string{"goal", string(sol.Goal), "objective", strconv.FormatFloat(sol.Objective, 'g', -1, 64)}
	if err := cw.Write(summary); err != nil {
		return fmt.Errorf("failed to write csv summary: %w", err)
	}
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, d := range sol.Demands {
		if !d.Feasible {
			continue
		}
		volume := strconv.FormatFloat(d.Demand.Volume, 'g', -1, 64)
		for _, r := range d.Routes {
			placements := formatPlacements(r.Placements)
			for i, e := range r.Edges {
				layer := 0
				if i < len(r.Layers) {
					layer = r.Layers[i]
				}
				row := []string{
					d.Demand.ID,
					d.Demand.Ingress,
					r.Egress,
					volume,
					strconv.Itoa(i),
					e.Src,
					e.Dst,
					strconv.Itoa(layer),
					placements,
				}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("failed to write csv row: %w", err)
				}
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatPlacements(ps []common.VnfPlacement) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p.Type) + "@" + p.Vertex
	}
	return strings.Join(parts, ";")
}

// WriteFile writes the csv export of sol to path
func WriteFile(path string, sol *common.Solution) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file %s: %w", path, err)
	}
	if err := WriteCSV(f, sol); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file %s: %w", path, err)
	}
	log.Infof("export: solution written to %s", path)
	return nil
}
