package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/extract"
)

// Report builds the markdown summary printed by `graphlens inspect`.
func Report(s *graphlens.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", s.Filename)

	g := s.Graph
	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Source | `%s` |\n", s.Source)
	if s.Digest != "" {
		fmt.Fprintf(&sb, "| Digest | `%s` |\n", shortDigest(s.Digest))
	}
	if !s.LoadedAt.IsZero() {
		fmt.Fprintf(&sb, "| Loaded | %s |\n", s.LoadedAt.Format(time.RFC3339))
	}
	if g == nil {
		return sb.String()
	}
	fmt.Fprintf(&sb, "| Nodes | %d |\n", len(g.Nodes))
	fmt.Fprintf(&sb, "| Links | %d |\n", len(g.Links))
	fmt.Fprintf(&sb, "| Groups | %d |\n", len(g.Groups))
	fmt.Fprintf(&sb, "| Camera | scale %.3f, offset (%.1f, %.1f) |\n", g.Camera.Scale, g.Camera.Offset.X, g.Camera.Offset.Y)

	if len(g.Nodes) > 0 {
		sb.WriteString("\n## Nodes\n\n| Tag | Type | Title | In | Out |\n|---|---|---|---|---|\n")
		for _, n := range g.Nodes {
			tag := fmt.Sprintf("#%d", n.ID)
			if n.Tag != nil {
				tag = n.Tag.Text
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %d | %d |\n",
				cell(tag), cell(n.Type), cell(n.Title), len(n.Inputs), len(n.Outputs))
		}
	}

	if counts := typeCounts(g); len(counts) > 0 {
		sb.WriteString("\n## Link types\n\n")
		for _, c := range counts {
			fmt.Fprintf(&sb, "- `%s` × %d\n", c.name, c.n)
		}
	}

	if len(g.Diagnostics) > 0 {
		sb.WriteString("\n## Diagnostics\n\n")
		for _, d := range g.Diagnostics {
			switch {
			case d.LinkID != 0:
				fmt.Fprintf(&sb, "- link %d: %s\n", d.LinkID, d.Reason)
			case d.NodeID != 0:
				fmt.Fprintf(&sb, "- node %d: %s\n", d.NodeID, d.Reason)
			default:
				fmt.Fprintf(&sb, "- %s\n", d.Reason)
			}
		}
	}
	return sb.String()
}

type typeCount struct {
	name string
	n    int
}

func typeCounts(g *domain.ProjectedGraph) []typeCount {
	m := map[string]int{}
	for _, l := range g.Links {
		m[l.Type]++
	}
	out := make([]typeCount, 0, len(m))
	for name, n := range m {
		out = append(out, typeCount{name: name, n: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].name < out[j].name
	})
	return out
}

func shortDigest(d string) string {
	if len(d) > 16 {
		return d[:16]
	}
	return d
}

// cell keeps pipes and newlines from breaking a table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// ChunkReport lists the tEXt chunks of a PNG, in file order.
func ChunkReport(chunks []extract.TextChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n## PNG text chunks\n\n| Keyword | Bytes |\n|---|---|\n")
	for _, c := range chunks {
		fmt.Fprintf(&sb, "| %s | %d |\n", cell(c.Keyword), len(c.Text))
	}
	return sb.String()
}
