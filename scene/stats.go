package scene

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
)

// Scene element counts.
type Stats struct {
	Cameras         int
	Images          int
	Textures        int
	Materials       int
	Samplers        int
	Nodes           int
	Meshes          int
	Instances       int
	Lights          int
	Triangles       int
	UniqueTriangles int
}

// Render the stats as a table.
func (s Stats) String() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Element", "Count"})

	rows := []struct {
		name  string
		count int
	}{
		{"Cameras", s.Cameras},
		{"Images", s.Images},
		{"Textures", s.Textures},
		{"Materials", s.Materials},
		{"Samplers", s.Samplers},
		{"Nodes", s.Nodes},
		{"Meshes", s.Meshes},
		{"Instances", s.Instances},
		{"Lights", s.Lights},
		{"Triangles", s.Triangles},
		{"Unique triangles", s.UniqueTriangles},
	}
	for _, row := range rows {
		table.Append([]string{row.name, fmt.Sprintf("%d", row.count)})
	}

	table.Render()
	return buf.String()
}
