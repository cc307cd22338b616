package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/graphlens/pkg/domain"
)

// Overlay marks nodes to highlight on the diagram.
type Overlay struct {
	Highlight []domain.NodeID
}

// GenerateMermaid produces a Mermaid flowchart of a projected graph.
// Shapes follow the node kind:
// - Standard: [Rectangle] titled with the node title and tag
// - Reroute: ((Circle))
// - Note: >Flag] with the first wrapped line
// Groups become subgraphs holding the nodes positioned inside them.
func GenerateMermaid(g *domain.ProjectedGraph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	if g == nil {
		return sb.String()
	}

	grouped := make(map[domain.NodeID]bool)
	for i, group := range g.Groups {
		var members []domain.NodeDescriptor
		for _, n := range g.Nodes {
			if n.Pos != nil && !grouped[n.ID] && group.Bounding.Contains(*n.Pos) {
				members = append(members, n)
				grouped[n.ID] = true
			}
		}
		if len(members) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "    subgraph group_%d[\"%s\"]\n", i, escapeLabel(group.Title))
		for _, n := range members {
			sb.WriteString("    " + nodeLine(n))
		}
		sb.WriteString("    end\n")
	}
	for _, n := range g.Nodes {
		if !grouped[n.ID] {
			sb.WriteString(nodeLine(n))
		}
	}

	ids := make([]domain.LinkID, 0, len(g.Links))
	for id := range g.Links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		l := g.Links[id]
		arrow := "-->"
		if l.Type != "" && l.Type != domain.WildcardType {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(l.Type))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", mermaidID(l.OriginID), arrow, mermaidID(l.TargetID))
	}

	if overlay != nil && len(overlay.Highlight) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text stays readable on the light fill under both themes.
		sb.WriteString("    classDef highlight fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		seen := make(map[domain.NodeID]bool)
		for _, id := range overlay.Highlight {
			if seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s highlight;\n", mermaidID(id))
		}
	}

	return sb.String()
}

func nodeLine(n domain.NodeDescriptor) string {
	id := mermaidID(n.ID)
	switch n.Kind {
	case domain.NodeKindReroute:
		return fmt.Sprintf("    %s((\"#%d\"))\n", id, n.ID)
	case domain.NodeKindNote:
		text := n.Title
		if n.Note != nil && len(n.Note.Lines) > 0 {
			text = n.Note.Lines[0]
		}
		return fmt.Sprintf("    %s>\"%s\"]\n", id, escapeLabel(text))
	}
	label := escapeLabel(n.Title)
	if n.Tag != nil {
		label += " <br/> " + escapeLabel(n.Tag.Text)
	}
	return fmt.Sprintf("    %s[\"%s\"]\n", id, label)
}

func mermaidID(id domain.NodeID) string {
	return sanitizeMermaidID(fmt.Sprintf("n%d", id))
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}

// escapeLabel keeps quotes and newlines from breaking a quoted label.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}
